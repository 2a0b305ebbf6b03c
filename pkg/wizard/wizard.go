// Package wizard runs the interactive create-or-update flow for one secret.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Result describes what the wizard did.
type Result struct {
	Path    string
	Version kvpath.EngineVersion
	Data    map[string]any
	Existed bool
	Saved   bool
}

type Wizard struct {
	svc    *vault.Service
	prompt *interaction.Prompter
	out    *output.Printer
	log    *otelzap.Logger
}

func New(svc *vault.Service, prompt *interaction.Prompter, out *output.Printer, log *otelzap.Logger) *Wizard {
	if log == nil {
		log = logger.Nop()
	}
	return &Wizard{svc: svc, prompt: prompt, out: out, log: log}
}

// Run walks the user through choosing an engine and path, entering fields
// and confirming the write. Declining or entering no fields is not an error.
func (w *Wizard) Run(ctx context.Context) (*Result, error) {
	mount, err := w.chooseEngine(ctx)
	if err != nil {
		return nil, err
	}

	rel, err := w.prompt.PromptValidated(ctx, "Enter the secret path (e.g., my-app/config)", kvpath.ValidateSecretPath)
	if err != nil {
		return nil, err
	}
	res := &Result{Path: kvpath.Join(mount.Path, rel), Version: mount.Version}

	w.out.Blank()
	w.out.Info("Working with secret at: %s", res.Path)

	res.Existed = w.svc.Secrets.ExistsAt(ctx, mount, res.Path)
	if res.Existed {
		w.showCurrent(ctx, mount, res.Path)
	}

	res.Data, err = w.collectFields(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		w.out.Warn("No secret data provided. Operation cancelled.")
		return res, nil
	}

	save, err := w.prompt.PromptYesNo(ctx, "Save this secret?", true)
	if err != nil {
		return nil, err
	}
	if !save {
		w.out.Blank()
		w.out.Warn("Operation cancelled.")
		return res, nil
	}

	if err := w.svc.Secrets.WriteAt(ctx, mount, res.Path, res.Data); err != nil {
		return nil, err
	}
	res.Saved = true
	w.log.Ctx(ctx).Info("Secret saved interactively",
		zap.String("path", res.Path), zap.String("engine", mount.Version.Label()), zap.Int("fields", len(res.Data)))

	w.out.Blank()
	w.out.Success("Secret saved successfully!")
	w.out.Blank()
	w.out.Plain("Secret details:")
	w.out.Plain("Path: %s", res.Path)
	w.out.Plain("Engine type: %s", mount.Version.Label())
	w.out.Plain("Data:")
	if err := w.out.SecretData(res.Data); err != nil {
		return res, err
	}
	return res, nil
}

func (w *Wizard) chooseEngine(ctx context.Context) (vault.EngineMount, error) {
	mounts, err := w.svc.Lister.DiscoverMounts(ctx)
	if err != nil {
		return vault.EngineMount{}, err
	}
	if len(mounts) == 0 {
		return vault.EngineMount{}, kv_err.NewExpectedError(errors.New("no KV secret engines are mounted"))
	}

	choices := make([]string, len(mounts))
	for i, m := range mounts {
		choices[i] = fmt.Sprintf("%s (%s)", m.Path, m.Version.Label())
	}
	idx, err := w.prompt.PromptSelect(ctx, "Select secret engine:", choices)
	if err != nil {
		return vault.EngineMount{}, err
	}
	return mounts[idx], nil
}

func (w *Wizard) showCurrent(ctx context.Context, mount vault.EngineMount, path string) {
	w.out.Blank()
	w.out.Warn("Secret already exists. Current values:")
	rec, err := w.svc.Secrets.ReadAt(ctx, mount, path)
	if err != nil {
		w.log.Ctx(ctx).Warn("Failed to read existing secret", zap.String("path", path), zap.Error(err))
		w.out.Muted("  (could not read current values: %s)", err)
		return
	}
	_ = w.out.SecretData(rec.Data)
}

// collectFields reads key/value pairs until an empty key or the user stops.
func (w *Wizard) collectFields(ctx context.Context) (map[string]any, error) {
	data := make(map[string]any)
	for {
		key, err := w.prompt.PromptValidated(ctx, "Enter secret key (or leave empty to finish)", optionalKey)
		if err != nil {
			return nil, err
		}
		if key == "" {
			return data, nil
		}

		value, err := w.readValue(ctx, key)
		if err != nil {
			return nil, err
		}
		data[key] = value

		w.out.Blank()
		w.out.Muted("Current secret data:")
		_ = w.out.SecretData(data)

		more, err := w.prompt.PromptYesNo(ctx, "Add another field?", true)
		if err != nil {
			return nil, err
		}
		if !more {
			return data, nil
		}
	}
}

func (w *Wizard) readValue(ctx context.Context, key string) (string, error) {
	label := fmt.Sprintf("Enter value for %s", key)
	for {
		value, err := w.prompt.PromptSecret(ctx, label)
		if err != nil {
			return "", err
		}
		if verr := interaction.ValidateNonEmpty(value); verr != nil {
			w.prompt.Printf("  Value cannot be empty\n")
			continue
		}
		return value, nil
	}
}

func optionalKey(k string) error {
	if k == "" {
		return nil
	}
	return kvpath.ValidateSecretKey(k)
}
