package watchman_test

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmurray2011/watchman/internal/cloudwatch/cloudwatchtest"
	"github.com/jmurray2011/watchman/pkg/watchman"
)

// Example shows a zerolog console frontend writing through the sink. The
// console timestamp is the first token of each line and is dropped before
// the event is sent; the raw line is echoed to stdout.
func Example() {
	api := cloudwatchtest.New()

	wm, err := watchman.NewWithAPI(context.Background(), api, "/app/api", "api-1")
	if err != nil {
		panic(err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:     wm.Writer(),
		NoColor: true,
		FormatTimestamp: func(interface{}) string {
			return "2024-01-01T00:00:00Z"
		},
	})
	logger.Info().Int("port", 8080).Msg("service started")

	if err := wm.Close(context.Background()); err != nil {
		panic(err)
	}

	for _, put := range api.WaitForPuts(1, time.Second) {
		for _, e := range put.Events {
			fmt.Printf("delivered to %s/%s: %s\n", put.Group, put.Stream, e.Message)
		}
	}

	// Output:
	// 2024-01-01T00:00:00Z INF service started port=8080
	// delivered to /app/api/api-1: INF service started port=8080
}
