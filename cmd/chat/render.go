package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"surveychat/internal/chat"
	"surveychat/internal/gateway"
	"surveychat/internal/model"
)

var (
	systemColor   = color.New(color.FgCyan)
	questionColor = color.New(color.FgCyan, color.Bold)
	successColor  = color.New(color.FgGreen, color.Bold)
	errorColor    = color.New(color.FgRed)
	infoColor     = color.New(color.FgYellow)
	youColor      = color.New(color.FgWhite, color.Bold)
	dimColor      = color.New(color.Faint)
)

// transcriptPrinter writes transcript messages it has not written yet
type transcriptPrinter struct {
	w    io.Writer
	seen int
}

func (p *transcriptPrinter) printNew(msgs []chat.Message) {
	if p.seen > len(msgs) {
		p.seen = 0
	}
	for _, m := range msgs[p.seen:] {
		printMessage(p.w, m)
	}
	p.seen = len(msgs)
}

func printMessage(w io.Writer, m chat.Message) {
	if m.Author == chat.AuthorRespondent {
		youColor.Fprint(w, "  you › ")
		fmt.Fprintln(w, m.Text)
		return
	}

	switch m.Annotation {
	case chat.AnnotationSuccess:
		successColor.Fprintln(w, "✓ "+m.Text)
	case chat.AnnotationError:
		errorColor.Fprintln(w, "✗ "+m.Text)
	case chat.AnnotationInfo:
		infoColor.Fprintln(w, "ℹ "+m.Text)
	default:
		if m.Question == nil {
			systemColor.Fprintln(w, m.Text)
			return
		}
		questionColor.Fprint(w, m.Text)
		if m.Question.Required {
			errorColor.Fprint(w, " *")
		}
		fmt.Fprintln(w)
		printChoices(w, *m.Question)
	}
}

func printChoices(w io.Writer, q model.Question) {
	switch {
	case q.Kind.IsChoice():
		for i, o := range q.Options {
			dimColor.Fprintf(w, "   %d) %s\n", i+1, o.Label)
		}
		if q.Kind == model.KindMultiChoice {
			dimColor.Fprintln(w, "   (separate several choices with commas)")
		}
	case q.Kind == model.KindRating:
		dimColor.Fprintf(w, "   (1-%d)\n", q.EffectiveScale())
	case q.Kind == model.KindDate:
		dimColor.Fprintln(w, "   (YYYY-MM-DD)")
	}
}

// parseAnswer turns a typed line into an answer. Choice questions accept an
// option number, value or label.
func parseAnswer(q model.Question, line string) model.Answer {
	line = strings.TrimSpace(line)
	switch {
	case q.Kind == model.KindMultiChoice:
		var choices []string
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				choices = append(choices, resolveOption(q, part))
			}
		}
		return model.ChoicesAnswer(choices...)
	case q.Kind.IsChoice():
		return model.TextAnswer(resolveOption(q, line))
	}
	return model.TextAnswer(line)
}

func resolveOption(q model.Question, s string) string {
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1].Value
	}
	for _, o := range q.Options {
		if strings.EqualFold(o.Value, s) || strings.EqualFold(o.Label, s) {
			return o.Value
		}
	}
	return s
}

func newClient() *gateway.Client {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}
	return gateway.NewClient(gateway.Config{BaseURL: apiURL, Logger: logger})
}
