package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type logEntry struct {
	timestamp time.Time
	level     slog.Level
	msg       string
	args      []any
}

func setupLogger() {
	logQueue = make(chan *logEntry, 10000)

	var ctx context.Context
	ctx, cancelFunc = context.WithCancel(context.Background())

	go processLogQueue(ctx)
}

func processLogQueue(ctx context.Context) {
	wg.Add(1)
	defer wg.Done()

	destinations := initDestinations()

	for {
		select {
		case entry := <-logQueue:
			for _, dest := range destinations {
				if dest.Enabled() && entry.level >= dest.Level() {
					dest.Write(entry)
				}
			}
		case <-ctx.Done():
			// Drain the log queue before exiting
			for len(logQueue) > 0 {
				entry := <-logQueue
				for _, dest := range destinations {
					if dest.Enabled() && entry.level >= dest.Level() {
						dest.Write(entry)
					}
				}
			}
			for _, dest := range destinations {
				dest.Close()
			}
			return
		}
	}
}

func formatArgs(args []any) string {
	var sb strings.Builder

	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			sb.WriteString(fmt.Sprintf("%v=%v", args[i], args[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf("%v", args[i]))
		}
		if i+2 < len(args) {
			sb.WriteString("\t")
		}
	}

	return sb.String()
}

func formatLogEntry(entry *logEntry) string {
	return fmt.Sprintf("%s [%s] %s\t%s", entry.timestamp.Format(time.RFC3339), entry.level.String(), entry.msg, formatArgs(entry.args))
}
