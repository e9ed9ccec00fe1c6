// Package commands implements the personalizectl subcommands, which inspect
// and edit the durable interaction record outside a running server.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/session"
	"github.com/benvon/smart-health/internal/storage"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Env carries the dependencies of every command
type Env struct {
	// Open returns the configured store and the record key
	Open func(ctx context.Context) (storage.Store, string, error)
	Now  func() time.Time

	output string
}

// NewRootCmd builds the personalizectl command tree
func NewRootCmd(env *Env) *cobra.Command {
	if env.Now == nil {
		env.Now = time.Now
	}

	root := &cobra.Command{
		Use:           "personalizectl",
		Short:         "Inspect and edit the Smart Health interaction record",
		Long:          "CLI tool for reading the persisted interaction snapshot and the personalization derived from it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch env.output {
			case OutputText, OutputJSON, OutputYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (text, json or yaml)", env.output)
			}
		},
	}
	root.PersistentFlags().StringVarP(&env.output, "output", "o", OutputText, "Output format: text, json or yaml")

	root.AddCommand(newShowCmd(env))
	root.AddCommand(newLayoutCmd(env))
	root.AddCommand(newRecommendCmd(env))
	root.AddCommand(newSymptomsCmd(env))
	root.AddCommand(newFocusCmd(env))
	root.AddCommand(newCompleteOnboardingCmd(env))
	root.AddCommand(newResetCmd(env))
	return root
}

// load reads and decodes the record. A damaged record is reported on stderr
// and replaced by what could be recovered.
func (e *Env) load(cmd *cobra.Command) (storage.Store, string, models.InteractionSnapshot, error) {
	store, key, err := e.Open(cmd.Context())
	if err != nil {
		return nil, "", models.InteractionSnapshot{}, err
	}

	defaults := models.NewDefaultSnapshot(e.Now().UTC())
	raw, found, err := store.Get(cmd.Context(), key)
	if err != nil {
		_ = store.Close()
		return nil, "", models.InteractionSnapshot{}, fmt.Errorf("failed to read interaction record: %w", err)
	}
	if !found {
		return store, key, defaults, nil
	}

	snapshot, err := session.Decode(raw, defaults)
	if errors.Is(err, session.ErrCorruptRecord) || errors.Is(err, session.ErrPartialRecord) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		err = nil
	}
	if err != nil {
		_ = store.Close()
		return nil, "", models.InteractionSnapshot{}, err
	}
	return store, key, snapshot, nil
}

// view loads the record, closes the store and hands the snapshot to fn
func (e *Env) view(cmd *cobra.Command, fn func(models.InteractionSnapshot) error) error {
	store, _, snapshot, err := e.load(cmd)
	if err != nil {
		return err
	}
	closeStore(cmd, store)
	return fn(snapshot)
}

// update applies fn to the record and writes it back
func (e *Env) update(cmd *cobra.Command, fn func(models.InteractionSnapshot) models.InteractionSnapshot) (models.InteractionSnapshot, error) {
	store, key, snapshot, err := e.load(cmd)
	if err != nil {
		return models.InteractionSnapshot{}, err
	}
	defer closeStore(cmd, store)

	next := fn(snapshot)
	raw, err := session.Encode(next)
	if err != nil {
		return models.InteractionSnapshot{}, err
	}
	if err := store.Set(cmd.Context(), key, raw); err != nil {
		return models.InteractionSnapshot{}, fmt.Errorf("failed to write interaction record: %w", err)
	}
	return next, nil
}

// render writes v in the selected format, using text for the text format
func (e *Env) render(w io.Writer, v any, text func(io.Writer)) error {
	switch e.output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		// go through JSON so keys keep their camelCase wire names and order
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		blockStyle(&doc)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

func closeStore(cmd *cobra.Command, store storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close store: %v\n", err)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
