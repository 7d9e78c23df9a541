// Package worker drives the bridge over a line-delimited JSON protocol on a
// byte stream, typically stdin/stdout of a child process. Each request line
// carries an id, a command, and arguments; the worker answers with exactly
// one response line per request and interleaves unsolicited event lines as
// the engine produces them.
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"dcbridge/internal/bridge"
	"dcbridge/internal/engine"
	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

const maxLineSize = 1 << 20

// request is one inbound command line.
type request struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// response answers one request.
type response struct {
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// push is one unsolicited event line.
type push struct {
	Event     events.Kind    `json:"event"`
	Args      events.Payload `json:"args"`
	Timestamp time.Time      `json:"timestamp"`
}

// Worker serves the protocol over one reader/writer pair.
type Worker struct {
	bridge  *bridge.Bridge
	logger  logging.Logger
	in      io.Reader
	timeout time.Duration

	mu  sync.Mutex
	out io.Writer
}

// New builds a worker. timeout bounds every waiting command; zero selects
// 30 seconds.
func New(b *bridge.Bridge, logger logging.Logger, in io.Reader, out io.Writer, timeout time.Duration) *Worker {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Worker{bridge: b, logger: logger, in: in, out: out, timeout: timeout}
}

// Run serves until EOF, a shutdown command, or ctx cancellation. Event lines
// flow for the whole session.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := w.bridge.Events()
	defer stream.Close()
	go func() {
		for {
			ev, err := stream.Next(ctx)
			if err != nil {
				return
			}
			w.writeLine(push{Event: ev.Kind, Args: ev.Payload, Timestamp: ev.Time})
		}
	}()

	scanner := bufio.NewScanner(w.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			w.writeLine(response{OK: false, Error: "malformed request: " + err.Error()})
			continue
		}

		if req.Cmd == "shutdown" {
			w.writeLine(response{ID: req.ID, OK: true})
			return nil
		}
		w.writeLine(w.handle(ctx, req))
	}
	return scanner.Err()
}

func (w *Worker) handle(ctx context.Context, req request) response {
	result, err := w.dispatch(ctx, req)
	if err != nil {
		w.logger.WithFields(logging.Fields{
			"cmd":   req.Cmd,
			"id":    req.ID,
			"error": err.Error(),
		}).Warn("Command failed")
		return response{ID: req.ID, OK: false, Error: err.Error()}
	}
	return response{ID: req.ID, OK: true, Result: result}
}

func (w *Worker) dispatch(ctx context.Context, req request) (interface{}, error) {
	switch req.Cmd {
	case "connect":
		var args struct {
			URL      string `json:"url"`
			Encoding string `json:"encoding"`
			Wait     bool   `json:"wait"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if !args.Wait {
			return nil, w.bridge.Connect(args.URL, args.Encoding)
		}
		out, err := w.bridge.ConnectAndWait(ctx, args.URL, args.Encoding, w.timeout)
		if err != nil {
			return nil, err
		}
		return outcomeResult(out), nil

	case "disconnect":
		var args struct {
			URL  string `json:"url"`
			Wait bool   `json:"wait"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if !args.Wait {
			return nil, w.bridge.Disconnect(args.URL)
		}
		out, err := w.bridge.DisconnectAndWait(ctx, args.URL, w.timeout)
		if err != nil {
			return nil, err
		}
		return outcomeResult(out), nil

	case "send_message":
		var args struct {
			HubURL  string `json:"hub_url"`
			Message string `json:"message"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, w.bridge.Engine().SendMessage(args.HubURL, args.Message)

	case "send_pm":
		var args struct {
			HubURL  string `json:"hub_url"`
			Nick    string `json:"nick"`
			Message string `json:"message"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, w.bridge.Engine().SendPrivateMessage(args.HubURL, args.Nick, args.Message)

	case "search":
		var args struct {
			Query      string `json:"query"`
			HubURL     string `json:"hub_url"`
			MinResults int    `json:"min_results"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if args.MinResults <= 0 {
			args.MinResults = 1
		}
		results, err := w.bridge.SearchAndWait(ctx, engine.SearchQuery{
			Query:  args.Query,
			HubURL: args.HubURL,
		}, args.MinResults, w.timeout)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": results}, nil

	case "download":
		var args struct {
			Directory string `json:"directory"`
			Name      string `json:"name"`
			Size      int64  `json:"size"`
			TTH       string `json:"tth"`
			Wait      bool   `json:"wait"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if !args.Wait {
			return nil, w.bridge.Engine().Download(args.Directory, args.Name, args.Size, args.TTH)
		}
		out, err := w.bridge.DownloadAndWait(ctx, args.Directory, args.Name, args.Size, args.TTH, w.timeout)
		if err != nil {
			return nil, err
		}
		return outcomeResult(out), nil

	case "remove_download":
		var args struct {
			Target string `json:"target"`
		}
		if err := parseArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, w.bridge.Engine().RemoveDownload(args.Target)

	case "list_hubs":
		return map[string]interface{}{"hubs": w.bridge.Engine().ListHubs()}, nil

	case "list_queue":
		return map[string]interface{}{"queue": w.bridge.Engine().ListQueue()}, nil

	case "status":
		return w.bridge.Status(), nil

	default:
		return nil, fmt.Errorf("unknown command %q", req.Cmd)
	}
}

func parseArgs(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing args")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bad args: %w", err)
	}
	return nil
}

func outcomeResult(out bridge.Outcome) map[string]interface{} {
	result := map[string]interface{}{"outcome": out.Status.String()}
	if out.Reason != "" {
		result["reason"] = out.Reason
	}
	return result
}

// writeLine serializes one protocol line. Writes are serialized so event
// pushes never interleave mid-line with responses.
func (w *Worker) writeLine(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		w.logger.WithError(err).Error("Failed to marshal protocol line")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(payload, '\n')); err != nil {
		w.logger.WithError(err).Error("Failed to write protocol line")
	}
}
