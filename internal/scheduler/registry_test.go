package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"outdial/internal/campaign"
	"outdial/internal/leads"
	"outdial/internal/suppression"
	"outdial/internal/telephony"
)

type notifyDispatcher struct {
	placed chan telephony.CallRequest
}

func (d *notifyDispatcher) PlaceCall(_ context.Context, req telephony.CallRequest) (telephony.CallResult, error) {
	d.placed <- req
	return telephony.CallResult{CallID: "call-1"}, nil
}

func newRegistryFixture(t *testing.T) (*Registry, *campaign.MemoryStore, *notifyDispatcher) {
	t.Helper()
	ctx := context.Background()

	cs := campaign.NewMemoryStore()
	ls := leads.NewMemoryStore()
	if err := ls.ReplaceRows(ctx, "ds1", "Leads", []leads.Lead{
		{FirstName: "Ann", Phone: "+15125550001", CallStatus: leads.CallStatus{Status: leads.StatusNotCalled}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.UpdateConfig(ctx, "dialer1", func(c *campaign.Config) {
		c.AssistantID = "asst-1"
		c.PhoneNumberIDs = []string{"pn-a"}
		c.DatasetID = "ds1"
		c.CallEverySeconds = 1
		c.DaysOfWeek = []int{0, 1, 2, 3, 4, 5, 6}
	}); err != nil {
		t.Fatal(err)
	}

	d := &notifyDispatcher{placed: make(chan telephony.CallRequest, 4)}
	engine := NewEngine(cs, ls, suppression.NewMemoryRegistry(), d, NewMemorySlots(), time.UTC, slog.Default())
	reg := NewRegistry(engine, cs, slog.Default())
	t.Cleanup(reg.Shutdown)
	return reg, cs, d
}

func TestRegistry_StartTicksImmediately(t *testing.T) {
	reg, cs, d := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Start(ctx, "dialer1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !reg.Armed("dialer1") {
		t.Fatal("loop not armed after start")
	}

	select {
	case req := <-d.placed:
		if req.CustomerNumber != "+15125550001" {
			t.Errorf("dialed %s", req.CustomerNumber)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch after start; first tick should be immediate")
	}

	st, err := cs.GetState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run := st.Campaigns["dialer1"]; !run.Running || run.Paused {
		t.Errorf("state after start = %+v", run)
	}
}

func TestRegistry_StartRejectsIncompleteConfig(t *testing.T) {
	reg, cs, _ := newRegistryFixture(t)
	ctx := context.Background()

	if _, err := cs.UpdateConfig(ctx, "dialer2", func(c *campaign.Config) {
		c.AssistantID = "asst-2"
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Start(ctx, "dialer2"); err == nil {
		t.Fatal("expected start to reject a campaign without caller IDs and dataset")
	}
	if reg.Armed("dialer2") {
		t.Fatal("loop armed despite rejected start")
	}
}

func TestRegistry_StopDisarmsAndPersists(t *testing.T) {
	reg, cs, d := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Start(ctx, "dialer1"); err != nil {
		t.Fatal(err)
	}
	<-d.placed
	if err := reg.Stop(ctx, "dialer1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if reg.Armed("dialer1") {
		t.Fatal("loop still armed after stop")
	}
	st, _ := cs.GetState(ctx)
	if run := st.Campaigns["dialer1"]; run.Running {
		t.Errorf("state after stop = %+v", run)
	}
}

func TestRegistry_PauseResume(t *testing.T) {
	reg, cs, d := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Start(ctx, "dialer1"); err != nil {
		t.Fatal(err)
	}
	<-d.placed
	if err := reg.Pause(ctx, "dialer1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	st, _ := cs.GetState(ctx)
	if run := st.Campaigns["dialer1"]; !run.Running || !run.Paused {
		t.Errorf("state after pause = %+v", run)
	}
	// The loop stays armed so resume needs no rearm.
	if !reg.Armed("dialer1") {
		t.Fatal("pause disarmed the loop")
	}
	if err := reg.Resume(ctx, "dialer1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	st, _ = cs.GetState(ctx)
	if run := st.Campaigns["dialer1"]; !run.Running || run.Paused {
		t.Errorf("state after resume = %+v", run)
	}
}

func TestRegistry_PauseIgnoresStoppedCampaign(t *testing.T) {
	reg, cs, _ := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Pause(ctx, "dialer1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	st, _ := cs.GetState(ctx)
	if run := st.Campaigns["dialer1"]; run.Paused {
		t.Error("pause flag set on a stopped campaign")
	}
}

func TestRegistry_StopAll(t *testing.T) {
	reg, cs, d := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Start(ctx, "dialer1"); err != nil {
		t.Fatal(err)
	}
	<-d.placed
	if err := reg.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if reg.Armed("dialer1") {
		t.Fatal("loop still armed after stop all")
	}
	st, _ := cs.GetState(ctx)
	for id, run := range st.Campaigns {
		if run.Running || run.Paused {
			t.Errorf("campaign %s still running after stop all: %+v", id, run)
		}
	}
}

func TestRegistry_ResumePersisted(t *testing.T) {
	reg, cs, d := newRegistryFixture(t)
	ctx := context.Background()

	// A previous process marked dialer1 running and then died.
	if _, err := cs.UpdateState(ctx, func(st *campaign.State) {
		st.Campaigns["dialer1"].Running = true
	}); err != nil {
		t.Fatal(err)
	}

	if err := reg.ResumePersisted(ctx); err != nil {
		t.Fatalf("resume persisted: %v", err)
	}
	if !reg.Armed("dialer1") {
		t.Fatal("persisted running campaign not rearmed")
	}
	select {
	case <-d.placed:
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch after resume")
	}
}

func TestRegistry_UnknownCampaign(t *testing.T) {
	reg, _, _ := newRegistryFixture(t)
	ctx := context.Background()

	if err := reg.Start(ctx, "dialer9"); err != campaign.ErrUnknownCampaign {
		t.Errorf("start unknown = %v", err)
	}
	if err := reg.Stop(ctx, "dialer9"); err != campaign.ErrUnknownCampaign {
		t.Errorf("stop unknown = %v", err)
	}
}
