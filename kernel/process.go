package kernel

import (
	"context"
	stdsync "sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
)

// Response is what HandleRequest returns: the first `Web/respond` a sync
// produces for the flow, or an error response if the flow reached
// quiescence (or its invocation budget) without one.
type Response struct {
	FlowID model.ID
	Body   interface{}
	Code   int
	Error  string
}

// responseHolder lets dispatchInvocation (running deep inside a sync
// firing) hand a Response back up to the HandleRequest call that started
// the flow, latching only the first attempt: the first completion to reach
// `Web/respond` terminates the flow.
type responseHolder struct {
	mu   stdsync.Mutex
	resp *Response
}

func (h *responseHolder) trySet(r Response) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resp != nil {
		return false
	}
	h.resp = &r
	return true
}

func (h *responseHolder) get() (Response, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resp == nil {
		return Response{}, false
	}
	return *h.resp, true
}

func (k *Kernel) responseHolderFor(flow model.ID) (*responseHolder, bool) {
	v, ok := k.flowResponses.Load(flow)
	if !ok {
		return nil, false
	}
	return v.(*responseHolder), true
}

func responseFromInput(flow model.ID, input model.Fields) Response {
	r := Response{FlowID: flow}
	if v, ok := input.Get("body"); ok {
		r.Body = v
	}
	if v, ok := input.Get("code"); ok {
		r.Code = toInt(v)
	}
	if v, ok := input.Get("error"); ok {
		if s, ok := v.(string); ok {
			r.Error = s
		}
	}
	return r
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// HandleRequest lifts a `{method, ...payload}` request into a `Web/request`
// completion and drives the flow to quiescence or to its first
// `Web/respond`.
func (k *Kernel) HandleRequest(ctx context.Context, method string, payload model.Fields) (Response, error) {
	flow := k.newID()
	holder := &responseHolder{}
	k.flowResponses.Store(flow, holder)
	defer k.flowResponses.Delete(flow)

	reqFields := payload.Clone()
	if reqFields == nil {
		reqFields = model.Fields{}
	}
	reqFields["method"] = method

	reqID := k.newID()
	seed := model.ActionCompletion{
		ID:        reqID,
		Concept:   "Web",
		Action:    "request",
		Output:    reqFields,
		Variant:   model.VariantOK,
		Flow:      flow,
		Timestamp: k.now(),
	}
	if err := k.actionLog.AppendInvocation(model.ActionInvocation{
		ID: reqID, Concept: "Web", Action: "request", Input: reqFields, Flow: flow, Timestamp: seed.Timestamp,
	}); err != nil {
		return Response{}, errors.Wrap(err, "could not append Web/request invocation")
	}
	if err := k.actionLog.AppendCompletion(seed); err != nil {
		return Response{}, errors.Wrap(err, "could not append Web/request completion")
	}

	start := k.now()
	err := k.processFlow(ctx, flow, seed, holder)
	resp, responded := holder.get()
	outcome := "responded"
	if !responded {
		outcome = "quiescent"
	}
	k.metrics.ObserveQuiescence(outcome, k.now().Sub(start))
	if err != nil {
		return Response{}, err
	}

	if responded {
		resp.FlowID = flow
		return resp, nil
	}
	return Response{FlowID: flow, Error: "no responder", Code: 404}, nil
}

// processFlow is the dispatch loop proper: a work queue of completions
// still to match against the sync index, growing as each sync firing
// produces new invocations whose completions rejoin the queue, until the
// queue drains (quiescence), the invocation budget is exceeded, or a
// responder terminates the flow.
func (k *Kernel) processFlow(ctx context.Context, flow model.ID, seed model.ActionCompletion, holder *responseHolder) error {
	pool := []model.ActionCompletion{seed}
	queue := []model.ActionCompletion{seed}
	processed := 0

	var errs *multierror.Error

	for len(queue) > 0 {
		if _, done := holder.get(); done {
			return nil
		}
		if k.cfg.MaxInvocations > 0 && processed >= k.cfg.MaxInvocations {
			k.log.Warn().Str("flow", flow.String()).Int("processed", processed).
				Msg("quiescence budget exceeded, abandoning flow")
			break
		}

		c := queue[0]
		queue = queue[1:]

		completions, err := k.distEngine.OnCompletion(ctx, c, pool)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "evaluating syncs for %s/%s", c.Concept, c.Action))
			continue
		}

		for _, nc := range completions {
			processed++
			pool = append(pool, nc)
			queue = append(queue, nc)
			if _, done := holder.get(); done {
				return nil
			}
		}
	}

	if _, done := holder.get(); done {
		return nil
	}
	return errs.ErrorOrNil()
}
