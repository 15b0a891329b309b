package launcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// forwarded are the signals relayed from the launcher to its child.
var forwarded = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// supervise relays signals to proc until done is closed. After a SIGINT or
// SIGTERM (or ctx cancellation) the child gets l.grace to exit before SIGKILL.
func (l *Launcher) supervise(ctx context.Context, proc *os.Process, done <-chan struct{}) {
	var sigs chan os.Signal
	if l.forwardSignals {
		sigs = make(chan os.Signal, len(forwarded))
		signal.Notify(sigs, forwarded...)
		defer signal.Stop(sigs)
	}

	var (
		killTimer *time.Timer
		killC     <-chan time.Time
	)
	defer func() {
		if killTimer != nil {
			killTimer.Stop()
		}
	}()

	terminate := func(sig os.Signal) {
		if killTimer != nil || l.grace <= 0 {
			return
		}
		l.logger.Warn("child terminating, SIGKILL scheduled", "signal", sig.String(), "grace", l.grace.String())
		killTimer = time.NewTimer(l.grace)
		killC = killTimer.C
	}

	ctxDone := ctx.Done()
	for {
		select {
		case <-done:
			return

		case sig := <-sigs:
			l.logger.Info("forwarding signal", "signal", sig.String(), "pid", proc.Pid)
			if err := proc.Signal(sig); err != nil {
				l.logger.Error("failed to forward signal", "signal", sig.String(), "error", err)
			}
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				terminate(sig)
			}

		case <-ctxDone:
			ctxDone = nil
			l.logger.Warn("launch cancelled, sending SIGTERM", "pid", proc.Pid, "error", ctx.Err())
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				l.logger.Error("failed to send SIGTERM", "error", err)
			}
			terminate(syscall.SIGTERM)

		case <-killC:
			killC = nil
			l.logger.Warn("child did not exit after grace period, sending SIGKILL", "pid", proc.Pid)
			if err := proc.Kill(); err != nil {
				l.logger.Error("failed to send SIGKILL", "error", err)
			}
		}
	}
}
