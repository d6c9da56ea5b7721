package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/access"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/usecase/rag"
)

type askOptions struct {
	tenantID      string
	userID        string
	role          string
	listingID     string
	developmentID string
	allowed       []string
	history       []string
	onboarding    map[string]string
	noColor       bool
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one chat turn locally and print the answer with its ranked listings",
		Example: `  realtorbot ask --tenant acme "Tenho menos de 300.000€ para gastar, procuro T2"
  realtorbot ask --tenant acme --listing L-12 "há algum mais barato?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			req, err := opts.request(strings.Join(args, " "))
			if err != nil {
				return err
			}

			rt, err := loadBootstrap(flags)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, usage := domain.NewContextWithUsage(cmd.Context())
			ans, err := a.chat.Answer(ctx, req)
			if err != nil {
				return fmt.Errorf("answer: %w", err)
			}
			printAnswer(cmd.OutOrStdout(), ans, usage)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.tenantID, "tenant", "t", "", "Tenant id (required)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Caller user id")
	cmd.Flags().StringVar(&opts.role, "role", "visitor", "Caller role: visitor, agent, manager, admin")
	cmd.Flags().StringVar(&opts.listingID, "listing", "", "Listing the visitor is looking at")
	cmd.Flags().StringVar(&opts.developmentID, "development", "", "Development the visitor is looking at")
	cmd.Flags().StringSliceVar(&opts.allowed, "allowed", nil, "Allow-listed listing ids for an agent")
	cmd.Flags().StringArrayVar(&opts.history, "history", nil, `Prior turn as "role: text" (repeatable, oldest first)`)
	cmd.Flags().StringToStringVar(&opts.onboarding, "onboarding", nil, "Onboarding answers as key=value")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

// request validates the flags into a pipeline request.
func (o *askOptions) request(question string) (rag.Request, error) {
	if o.listingID != "" && o.developmentID != "" {
		return rag.Request{}, errors.New("--listing and --development are mutually exclusive")
	}

	var ec *chat.ExternalContext
	switch {
	case o.listingID != "":
		c, err := chat.NewExternalContext(chat.ContextListing, o.listingID)
		if err != nil {
			return rag.Request{}, err //nolint:wrapcheck // already carries the sentinel
		}
		ec = &c
	case o.developmentID != "":
		c, err := chat.NewExternalContext(chat.ContextDevelopment, o.developmentID)
		if err != nil {
			return rag.Request{}, err //nolint:wrapcheck // already carries the sentinel
		}
		ec = &c
	}

	q, err := chat.NewQuery(question, ec, o.history, o.onboarding)
	if err != nil {
		return rag.Request{}, err //nolint:wrapcheck // already carries the sentinel
	}

	role, err := access.ParseRole(o.role)
	if err != nil {
		return rag.Request{}, err //nolint:wrapcheck // already carries the sentinel
	}
	scope := access.NewScope(o.userID, role)
	if o.allowed != nil {
		scope = scope.WithAllowList(o.allowed)
	}

	return rag.Request{TenantID: o.tenantID, Query: q, Scope: scope}, nil
}

func printAnswer(w io.Writer, ans rag.Answer, usage *domain.RequestUsage) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	score := color.New(color.FgGreen)

	_, _ = header.Fprintln(w, "Answer")
	_, _ = fmt.Fprintln(w, ans.Text)
	_, _ = fmt.Fprintln(w)

	if len(ans.Filters) > 0 {
		_, _ = header.Fprintln(w, "Filters")
		for _, k := range ans.Filters.Keys() {
			_, _ = fmt.Fprintf(w, "  %s %s\n", k, ans.Filters[k].String())
		}
		_, _ = fmt.Fprintln(w)
	}

	if ans.Aggregate != "" {
		_, _ = header.Fprintln(w, "Aggregate")
		_, _ = fmt.Fprintf(w, "  %s\n\n", ans.Aggregate)
	}

	_, _ = header.Fprintf(w, "Matches (%d)\n", len(ans.Matches))
	if len(ans.Matches) == 0 {
		_, _ = dim.Fprintln(w, "  none")
	}
	for i, m := range ans.Matches {
		_, _ = fmt.Fprintf(w, "%3d. %s %s", i+1, score.Sprintf("%.3f", m.Score()), m.ID())
		if id := m.ListingID(); id != "" {
			_, _ = dim.Fprintf(w, " listing=%s", id)
		}
		if id := m.DevelopmentID(); id != "" {
			_, _ = dim.Fprintf(w, " development=%s", id)
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = dim.Fprintf(w, "context=%d history=%d prompt=%d completion=%d",
		ans.ContextTokens, ans.HistoryTokens, ans.Usage.PromptTokens, ans.Usage.CompletionTokens)
	if usage != nil && usage.Embedded {
		_, _ = dim.Fprintf(w, " embedding=%d", usage.EmbeddingTokens)
	}
	_, _ = fmt.Fprintln(w)
}
