package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/formatter"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
)

const (
	cmdSkip = ":skip"
	cmdDone = ":done"
)

type interviewSessions interface {
	CreateSession(ctx context.Context, req *entity.CreateSessionRequest) (*entity.CreateSessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error)
	NextQuestion(ctx context.Context, sessionID string, skipped ...string) (*entity.NextQuestion, error)
	Complete(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
}

type interviewSynth interface {
	Generate(ctx context.Context, sessionID string, format entity.ProposalFormat) (*entity.ProposalDraft, error)
	Stream(ctx context.Context, sessionID string, format entity.ProposalFormat) (*proposal.ProposalStream, error)
}

type interviewOptions struct {
	User   string
	Format entity.ProposalFormat
	Stream bool
	// Export and Out write the draft to a file when both are set
	Export entity.ExportFormat
	Out    string
}

// runInterview asks questions read from in until the user types :done or
// input ends, then writes the proposal to out.
func runInterview(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	sessions interviewSessions,
	synth interviewSynth,
	opts interviewOptions,
) error {
	created, err := sessions.CreateSession(ctx, &entity.CreateSessionRequest{
		UserID:   opts.User,
		UserName: opts.User,
		Metadata: map[string]any{"channel": "cli"},
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	sessionID := created.SessionID
	fmt.Fprintf(out, "Session %s. Answer each question, %s skips it, %s finishes.\n\n", sessionID, cmdSkip, cmdDone)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var skipped []string
	current := created.NextQuestion
	answered := 0
	for {
		if current == nil {
			current = entity.DefaultNextQuestion()
		}
		fmt.Fprintf(out, "? %s\n> ", current.Text)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == cmdDone {
			break
		}
		if line == cmdSkip || line == "" {
			if !slices.Contains(skipped, current.Key) {
				skipped = append(skipped, current.Key)
			}
		} else {
			_, err := sessions.SubmitAnswer(ctx, sessionID, &entity.SubmitAnswerRequest{
				Question:     current.Key,
				Answer:       line,
				QuestionType: string(current.Type),
				Metadata:     map[string]any{"channel": "cli"},
			})
			var verr *entity.ValidationError
			switch {
			case errors.As(err, &verr):
				fmt.Fprintf(out, "! %s\n", verr.Reason)
				continue
			case err != nil:
				return fmt.Errorf("submit answer: %w", err)
			}
			answered++
		}

		current, err = sessions.NextQuestion(ctx, sessionID, skipped...)
		if err != nil {
			return fmt.Errorf("select next question: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	fmt.Fprintln(out)

	if answered == 0 {
		return &entity.InsufficientDataError{SessionID: sessionID}
	}

	draft, err := writeProposal(ctx, out, synth, sessionID, opts)
	if err != nil {
		return err
	}
	if _, err := sessions.Complete(ctx, sessionID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	if opts.Export != "" && opts.Out != "" {
		if err := exportDraft(draft, opts.Export, opts.Out); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSaved %s\n", opts.Out)
	}
	return nil
}

func writeProposal(
	ctx context.Context,
	out io.Writer,
	synth interviewSynth,
	sessionID string,
	opts interviewOptions,
) (*entity.ProposalDraft, error) {
	if !opts.Stream {
		draft, err := synth.Generate(ctx, sessionID, opts.Format)
		if err != nil {
			return nil, fmt.Errorf("generate proposal: %w", err)
		}
		fmt.Fprintln(out, draft.Content)
		return draft, nil
	}

	stream, err := synth.Stream(ctx, sessionID, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("generate proposal: %w", err)
	}
	tokens, err := stream.Tokens()
	if err != nil {
		return nil, err
	}
	for token := range tokens {
		fmt.Fprint(out, token)
	}
	fmt.Fprintln(out)

	draft, err := stream.Result()
	if err != nil {
		return nil, fmt.Errorf("stream proposal: %w", err)
	}
	return draft, nil
}

func exportDraft(draft *entity.ProposalDraft, format entity.ExportFormat, path string) error {
	f, err := formatter.NewFactory().Create(format)
	if err != nil {
		return err
	}
	data, err := f.Format(draft)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
