// gatecheck проверяет файлы форматов врат: разбирает каталог или отдельные
// файлы, печатает ошибки по файлам и сводку.
//
//	gatecheck -dir gates
//	gatecheck -dump gates/nether.gate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/annel0/mmo-gates/internal/config"
	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/gate/catalog"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/world/block"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run возвращает код выхода: 0 все форматы корректны, 1 есть ошибки
// форматов, 2 ошибка запуска.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gatecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dir        = fs.String("dir", "", "Каталог с файлами *.gate")
		configPath = fs.String("config", "", "YAML конфигурация (теги материалов)")
		workers    = fs.Int("workers", 4, "Число параллельных загрузчиков")
		dump       = fs.Bool("dump", false, "Печатать нормализованный текст каждого формата")
		verbose    = fs.Bool("v", false, "Подробный лог")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := logging.WARN
	if *verbose {
		level = logging.DEBUG
	}
	logging.SetDefaultLogger(logging.NewWriterLogger("gatecheck", stderr, level))

	registry := block.NewDefaultRegistry()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "❌ %v\n", err)
			return 2
		}
		if err := defineTags(registry, cfg.Materials.Tags); err != nil {
			fmt.Fprintf(stderr, "❌ %v\n", err)
			return 2
		}
	}

	ctx := context.Background()
	var (
		cat    *catalog.Catalog
		report *catalog.LoadReport
		err    error
	)
	switch {
	case *dir != "" && fs.NArg() > 0:
		fmt.Fprintln(stderr, "❌ укажите либо -dir, либо список файлов")
		return 2
	case *dir != "":
		cat, report, err = catalog.LoadDir(ctx, *dir, registry, *workers)
	case fs.NArg() > 0:
		cat, report, err = catalog.LoadFiles(ctx, fs.Args(), registry, *workers)
	default:
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 2
	}

	printFailures(stdout, report)
	for _, f := range cat.All() {
		printFormat(stdout, f, *dump)
	}
	fmt.Fprintf(stdout, "\n📊 Итого: %d форматов загружено, %d с ошибками\n", len(report.Loaded), len(report.Failed))

	if !report.OK() {
		return 1
	}
	return 0
}

func defineTags(r *block.Registry, tags map[string][]string) error {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.DefineTag(name, tags[name]...); err != nil {
			return fmt.Errorf("tag %s: %w", name, err)
		}
	}
	return nil
}

func printFailures(w io.Writer, report *catalog.LoadReport) {
	paths := make([]string, 0, len(report.Failed))
	for path := range report.Failed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		err := report.Failed[path]
		var fe *gate.FormatError
		if errors.As(err, &fe) && fe.Line > 0 {
			fmt.Fprintf(w, "❌ %s:%d: %s\n", path, fe.Line, fe.Reason)
			continue
		}
		fmt.Fprintf(w, "❌ %s: %v\n", path, err)
	}
}

func printFormat(w io.Writer, f *gate.Format, dump bool) {
	sealable := ""
	if f.SealableBySingleBlocker() {
		sealable = ", запирается одним блоком"
	}
	fmt.Fprintf(w, "✅ %s: рамка %d, поверхность %d, управление %d%s\n",
		f.Name(), len(f.FrameCells()), len(f.IrisCells()), len(f.ControlCells()), sealable)
	if !dump {
		return
	}
	text, err := f.MarshalText()
	if err != nil {
		fmt.Fprintf(w, "   ⚠️ не удалось сериализовать: %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s\n", text)
}
