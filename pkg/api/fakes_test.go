package api

import (
	"context"
	"errors"
	"sync"

	"github.com/platinummonkey/clientops/pkg/aggregator"
	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
	"github.com/platinummonkey/clientops/pkg/onboarding"
)

type fakeDeals struct {
	deals   []deals.Deal
	result  deals.Deal
	err     error
	actor   string
	lastReq deals.TransitionRequest
	action  deals.Action
}

func (f *fakeDeals) Overview(context.Context) (deals.Overview, error) {
	if f.err != nil {
		return deals.Overview{}, f.err
	}
	return deals.Overview{
		Columns:  deals.DefaultBoard().Lay(f.deals),
		Pipeline: deals.PipelineMetrics{Total: len(f.deals)},
	}, nil
}

func (f *fakeDeals) Get(_ context.Context, id string) (deals.Deal, error) {
	for _, d := range f.deals {
		if d.ID == id {
			return d, nil
		}
	}
	return deals.Deal{}, lifecycle.ErrNotFound
}

func (f *fakeDeals) Pipeline(context.Context) (deals.PipelineMetrics, error) {
	if f.err != nil {
		return deals.PipelineMetrics{}, f.err
	}
	return deals.PipelineMetrics{Total: len(f.deals)}, nil
}

func (f *fakeDeals) Act(_ context.Context, id string, action deals.Action, version string) (deals.Deal, error) {
	f.action = action
	f.lastReq = deals.TransitionRequest{DealID: id, Version: version}
	return f.result, f.err
}

func (f *fakeDeals) Drop(_ context.Context, id string, column deals.Stage, version string) (deals.Deal, error) {
	f.lastReq = deals.TransitionRequest{DealID: id, Target: column, Version: version}
	return f.result, f.err
}

func (f *fakeDeals) Transition(_ context.Context, req deals.TransitionRequest) (deals.Deal, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeDeals) Delete(ctx context.Context, id string) error {
	f.actor = observability.GetActor(ctx)
	return f.err
}

type fakeOnboarding struct {
	filter   onboarding.Filter
	ids      []string
	assignee string
	called   string
	err      error
}

func (f *fakeOnboarding) Monitor(_ context.Context, flt onboarding.Filter) (onboarding.Monitor, error) {
	f.filter = flt
	return onboarding.Monitor{Filter: flt, Clients: []onboarding.Progress{}}, f.err
}

func (f *fakeOnboarding) SendReminder(_ context.Context, org string) error {
	f.called = "reminder:" + org
	return f.err
}

func (f *fakeOnboarding) ScheduleCall(_ context.Context, org string) error {
	f.called = "call:" + org
	return f.err
}

func (f *fakeOnboarding) batch(flt onboarding.Filter, ids []string) *lifecycle.BatchResult[string] {
	f.filter, f.ids = flt, ids
	result := lifecycle.NewBatchResult[string]()
	for i, id := range ids {
		if i == len(ids)-1 && len(ids) > 1 {
			result.Fail(id, onboarding.ErrNotInView)
			continue
		}
		result.Succeed(id)
	}
	return result
}

func (f *fakeOnboarding) BulkReminder(_ context.Context, flt onboarding.Filter, ids []string) (*lifecycle.BatchResult[string], error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.batch(flt, ids), nil
}

func (f *fakeOnboarding) BulkAssign(_ context.Context, flt onboarding.Filter, ids []string, assignee string) (*lifecycle.BatchResult[string], error) {
	f.assignee = assignee
	return f.batch(flt, ids), f.err
}

func (f *fakeOnboarding) Export(_ context.Context, flt onboarding.Filter, ids []string) (*lifecycle.BatchResult[string], onboarding.ExportReceipt, error) {
	return f.batch(flt, ids), onboarding.ExportReceipt{ExportID: "exp-1"}, f.err
}

type fakeDunning struct {
	views  []dunning.View
	status dunning.Status
	result dunning.Result
	err    error
}

func (f *fakeDunning) Views(_ context.Context, status dunning.Status) ([]dunning.View, error) {
	f.status = status
	return f.views, f.err
}

func (f *fakeDunning) View(_ context.Context, id string) (dunning.View, error) {
	for _, v := range f.views {
		if v.ID == id {
			return v, nil
		}
	}
	return dunning.View{}, lifecycle.ErrNotFound
}

func (f *fakeDunning) Statistics(context.Context) (dunning.Statistics, error) {
	return dunning.Statistics{ActiveSequences: len(f.views)}, f.err
}

func (f *fakeDunning) Act(_ context.Context, id string, action dunning.Action, version string) (dunning.Result, error) {
	return f.result, f.err
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Portfolio(context.Context) (health.Portfolio, error) {
	if f.err != nil {
		return health.Portfolio{}, f.err
	}
	risky := health.ClientHealth{Scores: health.Scores{OrganizationID: "o2"}, RiskLevel: health.RiskHigh}
	return health.Portfolio{
		AtRisk:  []health.ClientHealth{risky},
		Clients: []health.ClientHealth{{Scores: health.Scores{OrganizationID: "o1"}}, risky},
	}, nil
}

type fakeDashboards struct {
	mu      sync.Mutex
	latest  *aggregator.Dashboard
	runs    int
	latestE error
}

func (f *fakeDashboards) Latest(context.Context) (aggregator.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestE != nil {
		return aggregator.Dashboard{}, f.latestE
	}
	if f.latest == nil {
		return aggregator.Dashboard{}, aggregator.ErrNoDashboard
	}
	return *f.latest, nil
}

func (f *fakeDashboards) Run(context.Context) (aggregator.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.runs > 1 {
		return aggregator.Dashboard{}, errors.New("only one run expected")
	}
	return aggregator.Dashboard{}, nil
}

func (f *fakeDashboards) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}
