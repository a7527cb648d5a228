package ptysession

import (
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mordilloSan/termbridge/internal/eventbus"
)

func TestCreateWriteReadClose(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available in test environment")
	}

	bus := eventbus.New()
	mgr := NewManager(bus)

	var mu sync.Mutex
	var out strings.Builder
	unsub := bus.Subscribe(eventbus.TopicPTYOutput, func(ev eventbus.Event) {
		oe, ok := ev.Data.(OutputEvent)
		if !ok || oe.SessionID != ev.SessionID {
			return
		}
		mu.Lock()
		out.Write(oe.Data)
		mu.Unlock()
	})
	defer unsub()

	id, err := mgr.Create(Config{Shell: "sh"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Contains(t, mgr.List(), id)

	require.NoError(t, mgr.Write(id, []byte("echo hello-termbridge\n")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(out.String(), "hello-termbridge")
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, mgr.Resize(id, 100, 40))
	require.NoError(t, mgr.Close(id))
	require.NotContains(t, mgr.List(), id)
}

func TestOperationsOnUnknownSessionFail(t *testing.T) {
	mgr := NewManager(eventbus.New())
	require.ErrorIs(t, mgr.Write("missing", []byte("x")), ErrSessionNotFound)
	require.ErrorIs(t, mgr.Resize("missing", 80, 24), ErrSessionNotFound)
	require.ErrorIs(t, mgr.Close("missing"), ErrSessionNotFound)
}
