package contracts

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/events/*.json
var schemasFS embed.FS

const (
	schemasDir     = "schemas/events"
	schemasBaseURL = "https://taskcollab.local/"
	commonSchema   = "common.json"
)

// compiledSchemas - схема на каждый тип события. Имя файла схемы совпадает с типом.
var compiledSchemas = make(map[domain.EventType]*jsonschema.Schema)

func init() {
	if err := compileSchemas(); err != nil {
		panic(fmt.Sprintf("contracts: %v", err))
	}
}

func compileSchemas() error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	// Сначала регистрируем все файлы как ресурсы, чтобы работали $ref между ними
	var files []string
	err := fs.WalkDir(schemasFS, schemasDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		file, err := schemasFS.Open(p)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := compiler.AddResource(schemasBaseURL+p, file); err != nil {
			return fmt.Errorf("failed to add schema resource %s: %w", p, err)
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error walking schema resources: %w", err)
	}

	for _, p := range files {
		name := path.Base(p)
		if name == commonSchema {
			continue
		}
		eventType := domain.EventType(strings.TrimSuffix(name, ".json"))
		if !eventType.Valid() {
			return fmt.Errorf("schema %s does not match any event type", p)
		}
		schema, err := compiler.Compile(schemasBaseURL + p)
		if err != nil {
			return fmt.Errorf("could not compile schema %s: %w", p, err)
		}
		compiledSchemas[eventType] = schema
	}

	for _, t := range []domain.EventType{domain.EventTaskCreated, domain.EventTaskUpdated, domain.EventTaskCommentCreated} {
		if _, ok := compiledSchemas[t]; !ok {
			return fmt.Errorf("schema for event type %s is missing", t)
		}
	}
	return nil
}
