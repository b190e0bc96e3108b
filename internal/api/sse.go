package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/http1/resp"

	"metals-dashboard/internal/llm"
)

const doneFrame = "data: [DONE]\n\n"

type flushWriter interface {
	Write(p []byte) (int, error)
	Flush() error
}

func stream(ctx context.Context, c *app.RequestContext, client *llm.Client, msgs []*schema.Message) {
	// cancelling stops the producer if the client goes away mid-stream
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, err := client.Stream(ctx, msgs)
	if err != nil {
		hlog.CtxErrorf(ctx, "llm stream setup: %v", err)
		c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	c.SetStatusCode(http.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.Response.HijackWriter(resp.NewChunkedBodyWriter(&c.Response, c.GetWriter()))

	if err := writeEvents(c, deltas); err != nil {
		hlog.CtxWarnf(ctx, "sse write: %v", err)
	}
}

// writeEvents forwards deltas as server-sent events until the channel closes.
// An error delta becomes an error frame and no [DONE] follows it.
func writeEvents(w flushWriter, deltas <-chan llm.Delta) error {
	for d := range deltas {
		if d.Err != nil {
			return writeFrame(w, map[string]string{"error": d.Err.Error()})
		}
		if err := writeFrame(w, map[string]string{"content": d.Content}); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte(doneFrame)); err != nil {
		return err
	}
	return w.Flush()
}

func writeFrame(w flushWriter, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(b)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, b...)
	frame = append(frame, "\n\n"...)
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Flush()
}
