package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/cta-wave/wave/internal/common/logging"
	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/common/waveerrors"
	"github.com/cta-wave/wave/internal/wave"
	"github.com/cta-wave/wave/internal/wave/events"
	"github.com/cta-wave/wave/internal/wave/manager"
	"github.com/cta-wave/wave/internal/wave/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspects the sessions in the configured store",
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureCommandLineLogging()
		},
	}
	cmd.AddCommand(
		listSessionsCmd(),
		findSessionCmd(),
	)
	return cmd
}

func listSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists every session with its progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			publicOnly, err := cmd.Flags().GetBool("public")
			if err != nil {
				return err
			}
			return withSessionManager(cmd, func(ctx *wavecontext.Context, m *manager.SessionManager) error {
				read := m.ReadSessions
				if publicOnly {
					read = m.ReadPublicSessions
				}
				sessions, err := read(ctx)
				if err != nil {
					return err
				}
				printSessions(cmd.OutOrStdout(), sessions)
				return nil
			})
		},
	}
	cmd.Flags().Bool("public", false, "List only public sessions")
	return cmd
}

func findSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <token fragment>",
		Short: "Shows the one session whose token starts with the fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := args[0]
			return withSessionManager(cmd, func(ctx *wavecontext.Context, m *manager.SessionManager) error {
				token, err := m.FindToken(ctx, fragment)
				if err != nil {
					return err
				}
				if token == "" {
					return &waveerrors.ErrNotFound{
						Type:    "session",
						Value:   fragment,
						Message: fmt.Sprintf("no single session token starts with it; at least %d characters are needed", manager.MinTokenFragmentLength),
					}
				}
				sess, err := m.ReadSession(ctx, token)
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(session.ToStatusView(sess))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

func withSessionManager(cmd *cobra.Command, f func(*wavecontext.Context, *manager.SessionManager) error) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := wavecontext.FromContext(cmd.Context())
	repository, err := wave.OpenRepository(ctx, config.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := repository.Close(); err != nil {
			ctx.Log.WithError(err).Warn("session store did not close cleanly")
		}
	}()
	m, err := wave.NewSessionManager(config, repository, events.NewHub())
	if err != nil {
		return err
	}
	return f(ctx, m)
}

func printSessions(w io.Writer, sessions []*session.Session) {
	for _, sess := range sessions {
		total, completed := 0, 0
		for api, n := range sess.TestFilesCount {
			total += n
			completed += sess.TestFilesCompletedCount[api]
		}
		fmt.Fprintf(w, "%s  %-9s  %d/%d  %v\n", sess.Token, sess.Status, completed, total, sess.Labels)
	}
}
