package sink

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/neolog/internal/model"
)

// Manifest summarizes a saved session next to its keystroke file.
// It carries participant fields that keystroke rows do not repeat.
type Manifest struct {
	SessionID       string                `yaml:"session_id"`
	Status          model.Status          `yaml:"status"`
	Participant     model.ParticipantInfo `yaml:"participant"`
	StartedAt       time.Time             `yaml:"started_at"`
	SavedAt         time.Time             `yaml:"saved_at"`
	TrialsCompleted int                   `yaml:"trials_completed"`
	TrialsTotal     int                   `yaml:"trials_total"`
	Keystrokes      int                   `yaml:"keystrokes"`
	DataFile        string                `yaml:"data_file"`
}

// ReadManifest decodes a manifest file.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

func writeManifest(path string, rec model.Record, dataFile string) error {
	m := Manifest{
		SessionID:       rec.SessionID,
		Status:          rec.Status,
		Participant:     rec.Participant,
		StartedAt:       rec.StartedAt,
		SavedAt:         rec.SavedAt,
		TrialsCompleted: rec.TrialsCompleted,
		TrialsTotal:     rec.TrialsTotal,
		Keystrokes:      len(rec.Events),
		DataFile:        dataFile,
	}
	err := writeFileAtomic(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
