package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncFile("core", "node", OutcomeTransformed)
	pr.IncFile("core", "node", OutcomeTransformed)
	pr.IncFile("core", "browser", OutcomeFailed)
	pr.ObservePackageBuild("core", 150*time.Millisecond)
	pr.IncWatchRebuild("core")
	pr.SetPendingPackages(3)

	if got := testutil.ToFloat64(pr.files.WithLabelValues("core", "node", OutcomeTransformed)); got != 2 {
		t.Errorf("expected 2 transformed files, got %v", got)
	}
	if got := testutil.ToFloat64(pr.watchRebuilds.WithLabelValues("core")); got != 1 {
		t.Errorf("expected 1 watch rebuild, got %v", got)
	}
	if got := testutil.ToFloat64(pr.pendingPackages); got != 3 {
		t.Errorf("expected 3 pending packages, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 4 {
		t.Errorf("expected 4 metric families, got %d", len(mfs))
	}
}

func TestNilRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncFile("a", "node", OutcomeCopied)
	pr.ObservePackageBuild("a", time.Second)
	pr.IncWatchRebuild("a")
	pr.SetPendingPackages(1)

	var _ Recorder = NoopRecorder{}
}

func TestListen(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncWatchRebuild("ui")

	srv, err := Listen("127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `umi_tools_watch_rebuilds_total{package="ui"} 1`) {
		t.Errorf("expected watch rebuild counter in scrape, got:\n%s", body)
	}
}
