// Package seed loads the category taxonomy (and optionally a starting inventory) from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"alforge/access"
	"alforge/apperr"
	"alforge/models"
	"alforge/services"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFile []byte

type Item struct {
	Code        string `yaml:"code"`
	UsageCode   string `yaml:"usage"`
	TypeCode    string `yaml:"type"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Notes       string `yaml:"notes"`
}

type File struct {
	Categories []models.Category `yaml:"categories"`
	Equipment  []Item            `yaml:"equipment"`
}

// Parse rejects unknown keys so typos in the file do not pass silently.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Load reads path, or the built-in taxonomy when path is empty.
func Load(path string) (*File, error) {
	if path == "" {
		return Parse(bytes.NewReader(defaultFile))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

type Result struct {
	Categories int
	Created    int
	Skipped    int
}

// Apply upserts the categories and creates the listed equipment. Items whose code already
// exists are skipped, so running it twice is harmless. Items without a code are numbered.
func Apply(ctx context.Context, f *File, catalog *services.CatalogService, eq *services.EquipmentService) (Result, error) {
	var res Result
	caller := access.System()

	if len(f.Categories) > 0 {
		saved, err := catalog.UpsertCategories(ctx, caller, f.Categories)
		if err != nil {
			return res, err
		}
		res.Categories = len(saved)
	}

	for _, it := range f.Equipment {
		in := services.NewEquipment{
			Code:        it.Code,
			UsageCode:   it.UsageCode,
			TypeCode:    it.TypeCode,
			Name:        it.Name,
			Description: it.Description,
			Notes:       it.Notes,
		}
		var err error
		if in.Code == "" {
			_, err = eq.CreateWithGeneratedCode(ctx, caller, in)
		} else {
			_, err = eq.Create(ctx, caller, in)
		}
		switch {
		case errors.Is(err, apperr.ErrConflict):
			res.Skipped++
			log.Printf("seed: %s already exists", it.Code)
		case err != nil:
			return res, fmt.Errorf("seed %q: %w", it.Name, err)
		default:
			res.Created++
		}
	}
	return res, nil
}
