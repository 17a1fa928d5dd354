// Package catalog хранит загруженные форматы врат и подбирает кандидатов
// для сопоставления по материалу управляющего блока.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/world/block"
	"golang.org/x/sync/errgroup"
)

var logger = logging.GetComponentLogger("catalog")

// Extension расширение файлов форматов
const Extension = ".gate"

// ErrDuplicateFormat формат с таким именем уже есть в каталоге
var ErrDuplicateFormat = errors.New("duplicate gate format name")

// Catalog потокобезопасный набор форматов. Сами форматы неизменяемы,
// поэтому возвращаемые срезы можно передавать сопоставителю без копирования.
type Catalog struct {
	mu      sync.RWMutex
	formats map[string]*gate.Format
	ordered []*gate.Format // Порядок кандидатов: от более специфичных к менее
}

// New создаёт пустой каталог
func New() *Catalog {
	return &Catalog{formats: make(map[string]*gate.Format)}
}

// Add добавляет формат. Имена уникальны.
func (c *Catalog) Add(f *gate.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.formats[f.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFormat, f.Name())
	}
	c.formats[f.Name()] = f
	c.ordered = append(c.ordered, f)
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return moreSpecific(c.ordered[i], c.ordered[j])
	})
	return nil
}

// Remove удаляет формат по имени
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.formats[name]; !exists {
		return false
	}
	delete(c.formats, name)
	for i, f := range c.ordered {
		if f.Name() == name {
			c.ordered = append(c.ordered[:i:i], c.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Get возвращает формат по имени
func (c *Catalog) Get(name string) (*gate.Format, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, exists := c.formats[name]
	return f, exists
}

// All возвращает все форматы в порядке перебора
func (c *Catalog) All() []*gate.Format {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*gate.Format, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Names возвращает имена форматов по алфавиту
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.formats))
	for name := range c.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len возвращает количество форматов
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.formats)
}

// FormatsFor возвращает кандидатов, у которых блок за табличкой может
// быть из указанного материала. Форматы с более узким списком материалов
// управляющих блоков идут раньше.
func (c *Catalog) FormatsFor(material block.BlockID) []*gate.Format {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*gate.Format
	for _, f := range c.ordered {
		if f.ControlMaterials().Contains(material) {
			out = append(out, f)
		}
	}
	return out
}

// moreSpecific порядок кандидатов: меньше материалов управления, затем
// большее число клеток рамки, затем имя.
func moreSpecific(a, b *gate.Format) bool {
	if ca, cb := len(a.ControlMaterials()), len(b.ControlMaterials()); ca != cb {
		return ca < cb
	}
	if na, nb := len(a.FrameCells()), len(b.FrameCells()); na != nb {
		return na > nb
	}
	return a.Name() < b.Name()
}

// LoadReport итог пакетной загрузки каталога
type LoadReport struct {
	Loaded []string         // Имена загруженных форматов
	Failed map[string]error // Файл -> причина отказа
}

// OK сообщает, что все файлы загружены без ошибок
func (r *LoadReport) OK() bool {
	return len(r.Failed) == 0
}

// FormatName выводит имя формата из имени файла
func FormatName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// LoadDir загружает все файлы *.gate каталога на workers горутинах.
// Ошибка одного файла не мешает загрузке остальных и попадает в отчёт;
// возвращаемая ошибка означает, что каталог не удалось прочитать или
// загрузка была отменена.
func LoadDir(ctx context.Context, dir string, resolver gate.MaterialResolver, workers int) (*Catalog, *LoadReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read gate directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	return LoadFiles(ctx, paths, resolver, workers)
}

// LoadFiles разбирает перечисленные файлы параллельно
func LoadFiles(ctx context.Context, paths []string, resolver gate.MaterialResolver, workers int) (*Catalog, *LoadReport, error) {
	if workers <= 0 {
		workers = 4
	}

	parsed := make([]*gate.Format, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := loadFile(path, resolver)
			if err != nil {
				failures[i] = err
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	cat := New()
	report := &LoadReport{Failed: make(map[string]error)}
	for i, path := range paths {
		if failures[i] != nil {
			report.Failed[path] = failures[i]
			logger.Warn("⚠️ Формат врат %s пропущен: %v", path, failures[i])
			continue
		}
		if err := cat.Add(parsed[i]); err != nil {
			report.Failed[path] = err
			logger.Warn("⚠️ Формат врат %s пропущен: %v", path, err)
			continue
		}
		report.Loaded = append(report.Loaded, parsed[i].Name())
	}

	logger.Info("🚪 Каталог врат загружен: %d форматов, %d ошибок", len(report.Loaded), len(report.Failed))
	return cat, report, nil
}

func loadFile(path string, resolver gate.MaterialResolver) (*gate.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return gate.Parse(FormatName(path), file, resolver)
}
