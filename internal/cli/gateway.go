package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/argusauth/argus/internal/biometrics"
	"github.com/argusauth/argus/internal/registry"
)

// autoGateway is the demo presentation layer: it prints what a real prompt
// would show and immediately dismisses on the appropriate terminal event,
// standing in for the user.
type autoGateway struct {
	mu  sync.Mutex
	out io.Writer
	reg *registry.Registry

	confirmRequired bool
	errorReported   bool
}

func newAutoGateway(out io.Writer) *autoGateway {
	return &autoGateway{out: out}
}

func (g *autoGateway) bind(reg *registry.Registry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reg = reg
}

func (g *autoGateway) ShowBiometric(prompt biometrics.PromptInfo, modality biometrics.Modality, requireConfirmation bool, _ int32, _ string, _ uint64) error {
	g.mu.Lock()
	g.confirmRequired = requireConfirmation
	g.mu.Unlock()
	fmt.Fprintf(g.out, "[ui] %s (%s, confirm=%t)\n", prompt.Title, modality, requireConfirmation)
	return nil
}

func (g *autoGateway) ShowCredential(prompt biometrics.PromptInfo, _ int32, _ string, _ uint64) error {
	fmt.Fprintf(g.out, "[ui] %s (device credential)\n", prompt.Title)
	// The demo has no real credential UI; auto-confirm with a synthetic
	// proof so the flow concludes.
	go g.reg.OnDialogDismissed(biometrics.DismissedCredentialConfirmed, []byte("demo-credential-proof"))
	return nil
}

func (g *autoGateway) Hide() error {
	fmt.Fprintln(g.out, "[ui] hidden")
	return nil
}

func (g *autoGateway) ReportHelp(modality biometrics.Modality, message string) error {
	fmt.Fprintf(g.out, "[ui] %s: %s\n", modality, message)
	return nil
}

func (g *autoGateway) ReportError(modality biometrics.Modality, kind biometrics.ErrorKind, vendorCode int32) error {
	fmt.Fprintf(g.out, "[ui] %s error: %s (vendor %d)\n", modality, kind, vendorCode)
	if kind == biometrics.KindPausedRejected || kind.IsLockout() {
		return nil
	}
	g.mu.Lock()
	g.errorReported = true
	reg := g.reg
	g.mu.Unlock()
	go reg.OnDialogDismissed(biometrics.DismissedError, nil)
	return nil
}

func (g *autoGateway) ReportHardwareAuthenticated() error {
	g.mu.Lock()
	confirm := g.confirmRequired
	reg := g.reg
	g.mu.Unlock()
	fmt.Fprintln(g.out, "[ui] biometric recognized")

	reason := biometrics.DismissedConfirmNotRequired
	if confirm {
		// Stand in for the user tapping Confirm.
		reason = biometrics.DismissedBiometricConfirmed
	}
	go reg.OnDialogDismissed(reason, nil)
	return nil
}

// consoleClient is the demo caller: prints results and closes done on the
// terminal notification.
type consoleClient struct {
	out  io.Writer
	once sync.Once
	done chan struct{}
}

func newConsoleClient(out io.Writer) *consoleClient {
	return &consoleClient{out: out, done: make(chan struct{})}
}

func (c *consoleClient) finish() {
	c.once.Do(func() { close(c.done) })
}

func (c *consoleClient) OnAuthSucceeded(authType biometrics.AuthType) {
	fmt.Fprintf(c.out, "authentication succeeded (%s)\n", authType)
	c.finish()
}

func (c *consoleClient) OnAuthFailed() {
	fmt.Fprintln(c.out, "authentication attempt failed, retrying allowed")
}

func (c *consoleClient) OnError(modality biometrics.Modality, kind biometrics.ErrorKind, vendorCode int32) {
	fmt.Fprintf(c.out, "authentication error: %s (%s, vendor %d)\n", kind, modality, vendorCode)
	c.finish()
}

func (c *consoleClient) OnDialogDismissed(reason biometrics.DismissReason) {
	fmt.Fprintf(c.out, "dialog dismissed: %s\n", reason)
	c.finish()
}

func (c *consoleClient) OnSystemEvent(event biometrics.SystemEvent) {
	if event == biometrics.EventCredentialShown {
		fmt.Fprintln(c.out, "device credential prompt shown")
	}
}
