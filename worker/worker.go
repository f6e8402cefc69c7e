package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/authcell/authcell/rpc"
	"github.com/hashicorp/go-hclog"
)

// Worker is the isolated context's event loop.  It receives envelopes from
// the pipe, dispatches them to the Engine, and replies exactly once per
// request.  Requests are handled sequentially: the worker is a
// single-threaded event loop by contract.
type Worker struct {
	transport *WorkerTransport
	engine    Engine
	logger    hclog.Logger

	// httpHandlerEnabled gates the request-start/finish/success pushes
	// around proxied HTTP calls.  Only the worker loop touches it.
	httpHandlerEnabled bool
}

// New creates a Worker over the worker-side end of a pipe.
// Supported options: WithLogger.
func New(t *WorkerTransport, e Engine, opt ...Option) (*Worker, error) {
	const op = "worker.New"
	if t == nil {
		return nil, fmt.Errorf("%s: transport is nil: %w", op, ErrNilParameter)
	}
	if e == nil {
		return nil, fmt.Errorf("%s: engine is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Worker{
		transport: t,
		engine:    e,
		logger:    opts.withLogger,
	}, nil
}

// Run processes requests until ctx is done or the host closes its end of the
// pipe.  It is intended to run on its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case env, ok := <-w.transport.requests:
			if !ok {
				return
			}
			w.handle(ctx, env)
		case <-ctx.Done():
			return
		}
	}
}

// handle replies exactly once, even when the engine panics: a panic is
// reported as a failed response rather than tearing down the loop.
func (w *Worker) handle(ctx context.Context, env envelope) {
	var resp rpc.Response
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("engine panic", "type", env.msg.Type, "panic", r)
				resp = rpc.NewErrorResponse(&rpc.ErrorInfo{
					Message: fmt.Sprintf("engine panic on %q: %v", env.msg.Type, r),
				})
			}
		}()
		resp = w.dispatch(ctx, env.msg)
	}()
	select {
	case env.reply <- resp:
	default:
		// the dedicated reply channel is buffered for one response; a
		// full buffer means the caller already settled
		w.logger.Warn("reply dropped", "type", env.msg.Type)
	}
}

func (w *Worker) dispatch(ctx context.Context, m rpc.Message) rpc.Response {
	switch m.Type {
	case rpc.TypeInit:
		var cfg rpc.ClientConfig
		if resp, ok := w.decode(m, &cfg); !ok {
			return resp
		}
		return w.respond(m, nil, w.engine.Initialize(ctx, cfg))

	case rpc.TypeUpdateConfig:
		var cfg rpc.ClientConfig
		if resp, ok := w.decode(m, &cfg); !ok {
			return resp
		}
		return w.respond(m, nil, w.engine.UpdateConfig(ctx, cfg))

	case rpc.TypeGetAuthURL:
		var req rpc.AuthURLRequest
		if resp, ok := w.decode(m, &req); !ok {
			return resp
		}
		out, err := w.engine.AuthorizationURL(ctx, req)
		return w.respond(m, out, err)

	case rpc.TypeRequestAccessToken:
		var info rpc.AuthorizationInfo
		if resp, ok := w.decode(m, &info); !ok {
			return resp
		}
		out, err := w.engine.RequestAccessToken(ctx, info)
		return w.respond(m, out, err)

	case rpc.TypeRefreshAccessToken, rpc.TypeStartAutoRefreshToken:
		out, err := w.engine.RefreshAccessToken(ctx)
		return w.respond(m, out, err)

	case rpc.TypeRevokeAccessToken:
		return w.respond(m, nil, w.engine.RevokeAccessToken(ctx))

	case rpc.TypeRequestCustomGrant:
		var req rpc.CustomGrantRequest
		if resp, ok := w.decode(m, &req); !ok {
			return resp
		}
		out, err := w.engine.CustomGrant(ctx, req)
		return w.respond(m, out, err)

	case rpc.TypeSignOut:
		url, err := w.engine.SignOut(ctx)
		return w.respond(m, &rpc.SignOutResponse{SignOutURL: url}, err)

	case rpc.TypeGetSignOutURL:
		url, err := w.engine.SignOutURL(ctx)
		return w.respond(m, &rpc.SignOutResponse{SignOutURL: url}, err)

	case rpc.TypeSetSessionState:
		var req rpc.SetSessionStateRequest
		if resp, ok := w.decode(m, &req); !ok {
			return resp
		}
		return w.respond(m, nil, w.engine.SetSessionState(ctx, req.SessionState))

	case rpc.TypeGetSessionStatus:
		out, err := w.engine.SessionStatus(ctx)
		return w.respond(m, out, err)

	case rpc.TypeGetBasicUserInfo:
		out, err := w.engine.BasicUserInfo(ctx)
		return w.respond(m, out, err)

	case rpc.TypeGetDecodedIDToken:
		out, err := w.engine.DecodedIDToken(ctx)
		return w.respond(m, out, err)

	case rpc.TypeGetIDToken:
		token, err := w.engine.IDToken(ctx)
		return w.respond(m, map[string]string{"id_token": token}, err)

	case rpc.TypeGetServiceEndpoints:
		out, err := w.engine.ServiceEndpoints(ctx)
		return w.respond(m, out, err)

	case rpc.TypeGetConfigData:
		out, err := w.engine.ConfigData(ctx)
		return w.respond(m, out, err)

	case rpc.TypeEnableHTTPHandler:
		w.httpHandlerEnabled = true
		return rpc.Response{Success: true}

	case rpc.TypeDisableHTTPHandler:
		w.httpHandlerEnabled = false
		return rpc.Response{Success: true}

	case rpc.TypeHTTPRequest:
		var req rpc.HTTPRequest
		if resp, ok := w.decode(m, &req); !ok {
			return resp
		}
		return w.proxyHTTP(ctx, []rpc.HTTPRequest{req})

	case rpc.TypeHTTPRequestAll:
		var reqs []rpc.HTTPRequest
		if resp, ok := w.decode(m, &reqs); !ok {
			return resp
		}
		return w.proxyHTTP(ctx, reqs)

	default:
		w.logger.Warn("unknown message type", "type", m.Type)
		return rpc.NewErrorResponse(&rpc.ErrorInfo{
			Message: fmt.Sprintf("unknown message type %q", m.Type),
		})
	}
}

// proxyHTTP runs one or more API calls through the engine.  With the HTTP
// handler enabled it pushes progress notifications around the batch:
// request-start before, request-finish after, and request-success when every
// call came back 2xx.
func (w *Worker) proxyHTTP(ctx context.Context, reqs []rpc.HTTPRequest) rpc.Response {
	if w.httpHandlerEnabled {
		w.pushNotification(rpc.TypeRequestStart)
		defer w.pushNotification(rpc.TypeRequestFinish)
	}

	results := make([]*rpc.HTTPResponse, 0, len(reqs))
	for _, req := range reqs {
		out, err := w.engine.HTTPRequest(ctx, req)
		if err != nil {
			if w.httpHandlerEnabled {
				w.pushNotification(rpc.TypeRequestError)
			}
			return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
		}
		results = append(results, out)
	}

	allOK := true
	for _, r := range results {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			allOK = false
		}
	}
	if w.httpHandlerEnabled && allOK {
		w.pushNotification(rpc.TypeRequestSuccess)
	}

	if len(results) == 1 {
		// single request: status/headers in the payload, body as the blob
		resp, err := rpc.NewSuccessResponse(results[0], results[0].Body)
		if err != nil {
			return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
		}
		return resp
	}
	// batch: every body rides inside the payload, since the reply can
	// carry only one blob
	batch := make([]*rpc.BatchHTTPResponse, 0, len(results))
	for _, r := range results {
		batch = append(batch, rpc.NewBatchHTTPResponse(r))
	}
	resp, err := rpc.NewSuccessResponse(batch, nil)
	if err != nil {
		return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
	}
	return resp
}

func (w *Worker) pushNotification(t rpc.MessageType) {
	m, err := rpc.NewMessage(t, nil)
	if err != nil {
		return
	}
	w.transport.notify(m)
}

// decode unmarshals the envelope payload.  On failure it returns the error
// response to send and ok=false.
func (w *Worker) decode(m rpc.Message, into interface{}) (rpc.Response, bool) {
	if len(m.Data) == 0 {
		return rpc.Response{}, true
	}
	if err := json.Unmarshal(m.Data, into); err != nil {
		w.logger.Debug("malformed payload", "type", m.Type, "error", err)
		return rpc.NewErrorResponse(&rpc.ErrorInfo{
			Message: fmt.Sprintf("malformed %q payload: %v", m.Type, err),
		}), false
	}
	return rpc.Response{}, true
}

// respond converts an engine result into a Response.
func (w *Worker) respond(m rpc.Message, payload interface{}, err error) rpc.Response {
	if err != nil {
		w.logger.Debug("operation failed", "type", m.Type, "error", err)
		return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
	}
	resp, mErr := rpc.NewSuccessResponse(payload, nil)
	if mErr != nil {
		return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: mErr.Error()})
	}
	return resp
}
