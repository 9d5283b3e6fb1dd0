// Package watchman ships application log lines to AWS CloudWatch Logs.
//
// A Watchman provisions one log group/stream pair and hands out Writers.
// A Writer is an io.Writer for logging frontends: every Write becomes one
// log event, sent in the background. Writes never block on the network and
// never fail; delivery problems are reported to an optional ErrorHandler
// and otherwise dropped.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	wm, err := watchman.New(ctx, cfg, "/app/api", "api-1")
//	if err != nil {
//		return err
//	}
//	defer wm.Close(context.Background())
//
//	logger := zerolog.New(zerolog.ConsoleWriter{Out: wm.Writer()}).With().Timestamp().Logger()
//	logger.Info().Msg("hello")
//
// # Line handling
//
// Each written line is echoed to stdout (see WithEcho), then its first
// space-delimited token is dropped because console formatters put a
// timestamp there (see WithStripPrefix), and terminal color codes are
// removed (see WithStripMode). The CloudWatch event is stamped with the time
// it was batched, not the time the log call was made.
package watchman
