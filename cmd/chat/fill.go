package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"surveychat/internal/chat"
	"surveychat/internal/config"
	"surveychat/internal/gateway"
)

var fillNoDelay bool

func newFillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill <survey-oid>",
		Short: "Answer a published survey as a conversation",
		Long: `Answer a published survey one question at a time.

Name, email and phone are asked first. If the email has already answered the
survey the conversation stops and the link to the earlier submission is shown.

Answers may be piped on stdin, one per line; presentation delays are skipped
when stdin is not a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			timing := chatTiming()
			if fillNoDelay || !isTerminal(os.Stdin) {
				timing = chat.Timing{SubmitTimeout: timing.SubmitTimeout}
			}
			return runFill(ctx, newClient(), args[0], timing, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&fillNoDelay, "no-delay", false, "Skip the typing delays between messages")
	return cmd
}

// chatTiming reads conversation pacing from SURVEYCHAT_CONFIG when present
func chatTiming() chat.Timing {
	c := config.DefaultChat()
	if cfg, err := config.Load(); err == nil {
		c = cfg.Chat
	}
	return chat.Timing{
		Welcome:          c.WelcomeDelay,
		Step:             c.StepDelay,
		SurveyStart:      c.SurveyStartDelay,
		SuccessRedirect:  c.SuccessRedirectDelay,
		ConflictRedirect: c.ConflictRedirectDelay,
		SubmitTimeout:    c.SubmitTimeout,
	}
}

func runFill(ctx context.Context, client *gateway.Client, oid string, timing chat.Timing, in io.Reader, out io.Writer) error {
	survey, err := client.GetSurvey(ctx, oid)
	if err != nil {
		var fe *gateway.FetchError
		if errors.As(err, &fe) {
			switch fe.Kind {
			case gateway.FetchNotFound:
				return fmt.Errorf("survey %s not found", oid)
			case gateway.FetchNotActive:
				return errors.New(fe.Message)
			}
		}
		return err
	}

	sched := chat.NewTimerScheduler()
	defer sched.Stop()

	redirect := make(chan string, 1)
	seq := chat.NewSequencer(chat.Options{
		Gateway: client,
		Navigator: chat.NavigatorFunc(func(url string) {
			select {
			case redirect <- url:
			default:
			}
		}),
		Scheduler: sched,
		Timing:    timing,
		Context:   ctx,
	})
	seq.Initialize(survey.ID, survey.Title, survey.Description, survey.Questions)

	printer := &transcriptPrinter{w: out}
	prompt := isTerminal(in)
	lines := bufio.NewScanner(in)
	for {
		sched.Wait()
		printer.printNew(seq.Transcript())
		if seq.Submitted() || seq.Halted() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		q := seq.CurrentQuestion()
		if q == nil {
			// every question answered but the submission failed
			fmt.Fprint(out, "Press enter to try again, or Ctrl-C to quit: ")
			if !lines.Scan() {
				return errors.New("submission not completed")
			}
			seq.Submit(ctx)
			continue
		}

		if prompt {
			youColor.Fprint(out, "> ")
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return err
			}
			return errors.New("input ended before the survey was complete")
		}
		seq.SubmitAnswer(ctx, parseAnswer(*q, lines.Text()))
	}

	select {
	case url := <-redirect:
		dimColor.Fprintln(out, strings.Repeat("─", 40))
		fmt.Fprintf(out, "View your submission: %s\n", url)
	default:
	}
	return nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
