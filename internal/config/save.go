package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/weakcast/internal/log"
)

type stressYAML struct {
	Observers int `yaml:"observers"`
	Topics    int `yaml:"topics"`
	DropEvery int `yaml:"drop_every"`
}

type watchYAML struct {
	Observers int    `yaml:"observers"`
	Tick      string `yaml:"tick"`
}

// SaveStress replaces the stress section of the config file.
func SaveStress(configPath string, s StressConfig) error {
	if err := ValidateStress(s); err != nil {
		return err
	}
	return saveSection(configPath, "stress", stressYAML{
		Observers: s.Observers,
		Topics:    s.Topics,
		DropEvery: s.DropEvery,
	})
}

// SaveWatch replaces the watch section of the config file. Durations are
// written in their string form so the file stays hand-editable.
func SaveWatch(configPath string, w WatchConfig) error {
	return saveSection(configPath, "watch", watchYAML{
		Observers: w.Observers,
		Tick:      w.Tick.String(),
	})
}

// saveSection rewrites one top-level key, keeping comments and formatting in
// the rest of the file by editing the yaml.Node tree.
func saveSection(configPath, key string, value any) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	var section yaml.Node
	if err := section.Encode(value); err != nil {
		return fmt.Errorf("building %s node: %w", key, err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}
	setKey(root, key, &section)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}
	log.Info(log.CatConfig, "saved config section", "path", configPath, "section", key)
	return nil
}

func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			// Keep the key node so its head comment survives.
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".weakcast.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
