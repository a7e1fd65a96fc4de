package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/lambGirl/umi-tools/internal/watcher"
	"github.com/lambGirl/umi-tools/pkg/completion"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/mocks"
	"github.com/lambGirl/umi-tools/pkg/types"
)

func TestRun_TransformerReceivesRoutedProfiles(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "single", "client.js")
	client := filepath.Join(root, "src", "client.js")
	server := filepath.Join(root, "src", "server.ts")
	writeFile(t, client, "export default 1;\n")
	writeFile(t, server, "export default 2;\n")
	writeFile(t, filepath.Join(root, "src", "templates", "tpl.js"), "tpl\n")
	writeFile(t, filepath.Join(root, "src", "fixtures", "app.js"), "fixture\n")

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)

	isBrowser := gomock.AssignableToTypeOf(types.TransformProfile{})
	tr.EXPECT().Transform(gomock.Any(), gomock.Any(), client, isBrowser).
		DoAndReturn(func(_ context.Context, content []byte, _ string, p types.TransformProfile) ([]byte, error) {
			require.True(t, p.IsBrowser())
			require.True(t, p.Has(types.FeatureJSX))
			return content, nil
		}).Times(1)
	tr.EXPECT().Transform(gomock.Any(), gomock.Any(), server, gomock.Any()).
		DoAndReturn(func(_ context.Context, content []byte, _ string, p types.TransformProfile) ([]byte, error) {
			require.False(t, p.IsBrowser())
			require.True(t, p.Has(types.FeatureCommonJS))
			return content, nil
		}).Times(1)

	o, err := New(Options{Cwd: root}, logger.Discard(), Dependencies{Transformer: tr})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Packages[0].Stats.Transformed)
	require.Equal(t, int64(1), summary.Packages[0].Stats.Copied)
	require.FileExists(t, filepath.Join(root, "lib", "templates", "tpl.js"))
	require.NoDirExists(t, filepath.Join(root, "lib", "fixtures"))
}

func TestRun_ReportsToCollaborators(t *testing.T) {
	root := newWorkspace(t, "alpha", "beta")
	writeFile(t, filepath.Join(root, "packages", "beta", "src", "broken.js"), "export const = ;\n")
	writeFile(t, filepath.Join(root, "packages", "beta", "src", "data.json"), "{}\n")

	h := newHarness()
	h.transformer.fail["broken.js"] = true

	notifier := mocks.NewMockNotifier()
	recorder := mocks.NewMockRecorder()
	signaler := mocks.NewMockSignaler()

	o, err := New(Options{Cwd: root, Watch: true}, logger.Discard(), Dependencies{
		Transformer:    h.transformer,
		Notifier:       notifier,
		Recorder:       recorder,
		Signaler:       signaler,
		WatcherFactory: h.watchers.factory,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx)
		done <- err
	}()

	first := <-h.watchers.armed
	second := <-h.watchers.armed
	require.ElementsMatch(t, []string{"alpha", "beta"}, []string{first, second})

	alpha := h.watchers.source("alpha")
	index := filepath.Join(root, "packages", "alpha", "src", "index.js")
	alpha.Trigger(index, watcher.OpChange)
	require.Eventually(t, func() bool { return recorder.Rebuilds("alpha") == 1 }, testTimeout, pollInterval)

	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []string{completion.CompletionMessage}, signaler.Messages())
	require.Equal(t, []int{2}, notifier.Completions())
	require.Equal(t, []string{"packages/beta/src/broken.js"}, notifier.Failures())

	require.Equal(t, 1, recorder.Builds("alpha"))
	require.Equal(t, 1, recorder.Builds("beta"))
	require.Equal(t, 1, recorder.Files("beta", "node", metrics.OutcomeFailed))
	require.Equal(t, 1, recorder.Files("beta", "none", metrics.OutcomeCopied))
	require.Equal(t, 2, recorder.Files("alpha", "node", metrics.OutcomeTransformed)+recorder.Files("alpha", "node", metrics.OutcomeUnchanged))

	pending := recorder.Pending()
	require.Equal(t, []int{2}, pending[:1])
	require.Equal(t, 0, pending[len(pending)-1])
}

func TestRun_SignalFailureIsLogged(t *testing.T) {
	root := newWorkspace(t, "alpha")

	signaler := mocks.NewMockSignaler()
	signaler.SetError(errors.New("channel closed"))

	h := newHarness()
	o, err := New(Options{Cwd: root}, logger.CreateLoggerWithOutput("info", h.logs), Dependencies{
		Transformer: h.transformer,
		Signaler:    signaler,
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, signaler.Messages(), 1)
	require.Contains(t, h.logs.String(), "Failed to signal parent process")
}
