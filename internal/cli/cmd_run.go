package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/argusauth/argus/internal/biometrics"
	"github.com/argusauth/argus/internal/config"
	"github.com/argusauth/argus/internal/crypto"
	"github.com/argusauth/argus/internal/drivers/sim"
	logpkg "github.com/argusauth/argus/internal/log"
	"github.com/argusauth/argus/internal/registry"
	"github.com/argusauth/argus/internal/storage"
	"github.com/argusauth/argus/internal/telemetry"
)

func newRunCommand(out io.Writer) *cobra.Command {
	var (
		configPath string
		userID     int32
		confirm    bool
		credential bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulated authentication transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runOnce(out, cfg, userID, confirm, credential)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to argusd.toml")
	cmd.Flags().Int32Var(&userID, "user", 0, "User id to authenticate")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Require explicit confirmation")
	cmd.Flags().BoolVar(&credential, "allow-credential", true, "Allow device-credential fallback")
	return cmd
}

func runOnce(out io.Writer, cfg config.Config, userID int32, confirm, credential bool) error {
	logger, closer, err := logpkg.New(logpkg.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	// Demo deployments derive the sealing key fresh per process; a real
	// deployment would anchor it in hardware-backed keystorage.
	rootKey := memguard.NewBufferRandom(32)
	defer rootKey.Destroy()
	cipher, err := crypto.NewTokenCipher(rootKey.Bytes(), nil)
	if err != nil {
		return err
	}
	defer cipher.Destroy()

	store, err := storage.Open(cfg.Storage.Path, cipher)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	specs, sensors, err := buildSensors(cfg.Sensors)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := store.Enrollments.Upsert(context.Background(), &storage.Enrollment{
			UserID:   userID,
			SensorID: spec.ID,
			Modality: spec.Modality.String(),
		}); err != nil {
			return err
		}
	}

	var recorder biometrics.Recorder
	if cfg.Telemetry.Enabled {
		service, err := telemetry.NewService(store.Outcomes, logger)
		if err != nil {
			return err
		}
		recorder = service
	}

	gateway := newAutoGateway(out)
	reg, err := registry.New(registry.Config{
		Sensors:     specs,
		Enrollments: storage.NewEnrollmentState(store.Enrollments),
		Gateway:     gateway,
		Recorder:    recorder,
		Logger:      logger,
		SinkFor: func(sessionToken string) biometrics.OutcomeSink {
			return storage.NewTokenSink(store.Tokens, sessionToken, "biometric")
		},
	})
	if err != nil {
		return err
	}
	gateway.bind(reg)
	for _, sensor := range sensors {
		sensor.Bind(reg)
	}

	allowed := biometrics.StrengthStrong | biometrics.StrengthWeak
	if credential {
		allowed |= biometrics.StrengthCredential
	}

	client := newConsoleClient(out)
	token, err := reg.Authenticate(registry.AuthRequest{
		UserID:    userID,
		CallerPkg: "argusd.demo",
		Allowed:   allowed,
		Prompt: biometrics.PromptInfo{
			Title:          cfg.Prompt.Title,
			Subtitle:       cfg.Prompt.Subtitle,
			NegativeButton: cfg.Prompt.NegativeButton,
		},
		RequireConfirmation: confirm,
	}, client)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session %s started\n", token)

	select {
	case <-client.done:
	case <-time.After(10 * time.Second):
		reg.CancelAuthentication(true)
		return fmt.Errorf("run: transaction did not complete")
	}
	return nil
}

func buildSensors(configs []config.SensorConfig) ([]biometrics.SensorSpec, []*sim.Sensor, error) {
	var (
		specs   []biometrics.SensorSpec
		sensors []*sim.Sensor
	)
	for _, sc := range configs {
		modality, err := parseModality(sc.Modality)
		if err != nil {
			return nil, nil, err
		}
		strength := parseStrength(sc.Strength)
		outcome := sim.Outcome(sc.Outcome)
		if outcome == "" {
			outcome = sim.OutcomeSucceed
		}

		sensor := sim.New(sc.ID, strength&biometrics.StrengthStrong != 0, outcome, 10*time.Millisecond)
		sensors = append(sensors, sensor)
		specs = append(specs, biometrics.SensorSpec{
			ID:       sc.ID,
			Modality: modality,
			Strength: strength,
			Driver:   sensor,
		})
	}
	return specs, sensors, nil
}

func parseModality(value string) (biometrics.Modality, error) {
	switch strings.ToLower(value) {
	case "fingerprint":
		return biometrics.ModalityFingerprint, nil
	case "iris":
		return biometrics.ModalityIris, nil
	case "face":
		return biometrics.ModalityFace, nil
	default:
		return biometrics.ModalityNone, fmt.Errorf("unknown modality %q", value)
	}
}

func parseStrength(value string) biometrics.Strength {
	switch strings.ToLower(value) {
	case "weak":
		return biometrics.StrengthWeak
	case "convenience":
		return biometrics.StrengthConvenience
	default:
		return biometrics.StrengthStrong
	}
}
