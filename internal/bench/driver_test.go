//go:build linux

package bench_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neekrasov/ipcsem/internal/bench"
	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/spin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerEnv turns the test binary into a bench peer, see TestMain.
const peerEnv = "IPCSEM_BENCH_TEST_PEER"

func TestMain(m *testing.M) {
	switch os.Getenv(peerEnv) {
	case "":
		os.Exit(m.Run())
	case "fail":
		fmt.Fprintln(os.Stderr, "peer failing on purpose")
		os.Exit(3)
	default:
		if err := bench.RunPeer(context.Background(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
}

var backends = []string{bench.BackendSpin, bench.BackendNamed}

func newDriver(t *testing.T, backend string) *bench.Driver {
	t.Helper()

	executable, err := os.Executable()
	require.NoError(t, err)

	return &bench.Driver{
		Backend: backend,
		Options: bench.Options{
			Directory: t.TempDir(),
			Backoff:   spin.DefaultBackoff(),
		},
		Iterations: 500,
		Prefix:     "test",
		Executable: executable,
		Env:        []string{peerEnv + "=1"},
		Stderr:     os.Stderr,
	}
}

func TestRunOwner(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			driver := newDriver(t, backend)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			res, err := driver.RunOwner(ctx, 0)
			require.NoError(t, err)

			assert.Equal(t, backend, res.Backend)
			assert.Equal(t, "owner", res.Owner.Role)
			assert.Equal(t, os.Getpid(), res.Owner.PID)
			assert.Equal(t, 500, res.Owner.Iterations)
			assert.Positive(t, res.Owner.Elapsed)

			assert.Equal(t, backend, res.Peer.Backend)
			assert.Equal(t, "peer", res.Peer.Role)
			assert.NotEqual(t, os.Getpid(), res.Peer.PID)
			assert.Equal(t, 500, res.Peer.Iterations)
			assert.Positive(t, res.Peer.Elapsed)

			// objects are removed once the round is over
			entries, err := os.ReadDir(driver.Options.Directory)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRunOwner_PeerFails(t *testing.T) {
	t.Parallel()

	driver := newDriver(t, bench.BackendSpin)
	driver.Env = []string{peerEnv + "=fail"}
	driver.Stderr = nil

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := driver.RunOwner(ctx, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer exited")
	assert.NoError(t, ctx.Err())
}

func TestRunOwner_Timeout(t *testing.T) {
	t.Parallel()

	driver := newDriver(t, bench.BackendSpin)
	// a peer that never joins the exchange
	driver.Executable = "sleep"
	driver.Args = []string{"60"}
	driver.Env = nil

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := driver.RunOwner(ctx, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunInProcess(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			driver := newDriver(t, backend)

			res, err := driver.RunInProcess(context.Background(), 7)
			require.NoError(t, err)

			assert.Equal(t, 7, res.Round)
			assert.Equal(t, res.Owner.PID, res.Peer.PID)
			assert.Positive(t, res.Owner.PerRoundTrip())
			assert.Positive(t, res.Peer.PerRoundTrip())
		})
	}
}

func TestRun_Rounds(t *testing.T) {
	t.Parallel()

	driver := newDriver(t, bench.BackendSpin)
	driver.Iterations = 50

	var progress bytes.Buffer
	driver.Progress = &progress

	results, err := driver.Run(context.Background(), 3, true)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, i, res.Round)
		assert.Contains(t, res.String(), "spin round")
	}
	assert.NotEmpty(t, progress.String())
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	driver := newDriver(t, "carrier-pigeon")
	_, err := driver.Run(context.Background(), 1, true)
	require.ErrorContains(t, err, "unknown backend")

	driver = newDriver(t, bench.BackendSpin)
	driver.Iterations = 0
	_, err = driver.Run(context.Background(), 1, false)
	require.ErrorIs(t, err, bench.ErrInvalidIterations)
}

func TestOpener_Swapped(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			opener, err := bench.NewOpener(backend, bench.Options{Directory: t.TempDir()})
			require.NoError(t, err)
			assert.Equal(t, backend, opener.Backend())

			owner, err := opener.Create("pair")
			require.NoError(t, err)
			defer owner.Close()

			_, err = opener.Create("pair")
			require.ErrorIs(t, err, ipcsem.ErrAlreadyExists)

			peer, err := opener.Attach("pair")
			require.NoError(t, err)
			defer peer.Close()

			require.NoError(t, owner.Sem1.Release())
			ok, err := peer.Sem0.TryAcquire()
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, peer.Sem1.Release())
			ok, err = owner.Sem0.TryAcquire()
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, peer.Close())
			require.NoError(t, owner.Close())

			_, err = opener.Attach("pair")
			require.Error(t, err)
		})
	}
}

func TestReport_PerRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2*time.Millisecond, bench.Report{Iterations: 5, Elapsed: 10 * time.Millisecond}.PerRoundTrip())
	assert.Zero(t, bench.Report{Elapsed: time.Second}.PerRoundTrip())
}
