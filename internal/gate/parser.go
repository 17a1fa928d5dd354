package gate

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// MaxFormatSize предельный размер описания формата в байтах
const MaxFormatSize = 64 * 1024

// Parse читает описание формата врат. Ошибка всегда имеет тип *FormatError;
// частично разобранный формат не возвращается.
func Parse(name string, r io.Reader, resolver MaterialResolver) (*Format, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFormatSize+1))
	if err != nil {
		return nil, &FormatError{Name: name, Reason: fmt.Sprintf("read failed: %v", err)}
	}
	return ParseBytes(name, data, resolver)
}

// ParseString разбирает описание формата из строки
func ParseString(name, text string, resolver MaterialResolver) (*Format, error) {
	return ParseBytes(name, []byte(text), resolver)
}

// ParseBytes разбирает описание формата из среза байт
func ParseBytes(name string, data []byte, resolver MaterialResolver) (*Format, error) {
	if len(data) > MaxFormatSize {
		return nil, &FormatError{Name: name, Reason: fmt.Sprintf("input exceeds size limit of %d bytes", MaxFormatSize)}
	}
	if !utf8.Valid(data) {
		return nil, &FormatError{Name: name, Reason: "input is not valid UTF-8"}
	}

	p := &parser{
		name:     name,
		resolver: resolver,
		format: &Format{
			name:    name,
			frame:   make(map[vec.Vec3]rune),
			symbols: make(map[rune]materialSpec),
			roles:   make(map[vec.Vec3]Role),
		},
	}
	lines := splitLines(data)

	gridStart, err := p.parseHeader(lines)
	if err != nil {
		return nil, err
	}
	if err := p.parseGrid(lines, gridStart); err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.format, nil
}

type parser struct {
	name     string
	resolver MaterialResolver
	format   *Format

	openText        string
	closedText      string
	controlDeclared bool
	exits           int
	openLine   int
	closedLine int
}

func (p *parser) fail(line int, format string, args ...any) error {
	return &FormatError{Name: p.name, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// parseHeader читает строки key=value до первой строки без '='.
// Возвращает индекс первой строки сетки.
func (p *parser) parseHeader(lines []string) (int, error) {
	p.openText, p.closedText = DefaultOpenSpec, DefaultClosedSpec

	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		key, value, found := strings.Cut(line, "=")
		if !found {
			break
		}
		lineNr := i + 1
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "":
			return 0, p.fail(lineNr, "empty header key")
		case key == KeyPortalOpen:
			p.openText, p.openLine = value, lineNr
		case key == KeyPortalClosed:
			p.closedText, p.closedLine = value, lineNr
		case utf8.RuneCountInString(key) == 1:
			sym, _ := utf8.DecodeRuneInString(key)
			if err := p.declareSymbol(lineNr, sym, value); err != nil {
				return 0, err
			}
		default:
			p.format.metadata = append(p.format.metadata, MetaEntry{Key: key, Value: value})
		}
	}
	return i, nil
}

func (p *parser) declareSymbol(lineNr int, sym rune, value string) error {
	if sym == SymbolIris || sym == SymbolExit {
		return p.fail(lineNr, "symbol %q is reserved and cannot be declared", sym)
	}

	spec, err := p.parseMaterials(lineNr, value)
	if err != nil {
		return err
	}
	if sym == SymbolControl {
		if p.controlDeclared {
			return p.fail(lineNr, "symbol %q declared twice", sym)
		}
		p.format.controlSpec = spec
		p.controlDeclared = true
		return nil
	}
	if _, exists := p.format.symbols[sym]; exists {
		return p.fail(lineNr, "symbol %q declared twice", sym)
	}
	p.format.symbols[sym] = spec
	return nil
}

// parseMaterials разбирает список через запятую из имён, числовых ID и тегов
func (p *parser) parseMaterials(lineNr int, text string) (materialSpec, error) {
	spec := materialSpec{materials: make(block.Set)}
	tokens := make([]string, 0, 4)
	haveFirst := false

	for _, raw := range strings.Split(text, ",") {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		tokens = append(tokens, token)

		var ids []block.BlockID
		if strings.HasPrefix(token, block.TagPrefix) {
			tag := strings.TrimPrefix(token, block.TagPrefix)
			members, ok := p.resolver.ExpandMaterialTag(tag)
			if !ok {
				return spec, p.fail(lineNr, "unknown material tag %q", token)
			}
			ids = members
		} else {
			id, ok := p.resolver.LookupMaterial(token)
			if !ok {
				return spec, p.fail(lineNr, "unknown material %q", token)
			}
			ids = []block.BlockID{id}
		}

		for _, id := range ids {
			if !haveFirst {
				spec.first = id
				haveFirst = true
			}
			spec.materials[id] = struct{}{}
		}
	}

	if len(spec.materials) == 0 {
		return spec, p.fail(lineNr, "empty material specification %q", text)
	}
	spec.text = strings.Join(tokens, ",")
	return spec, nil
}

// parseGrid читает сетку. Строка r соответствует Y = -r, колонка c соответствует Z = c.
func (p *parser) parseGrid(lines []string, start int) error {
	// Пустые строки между заголовком и сеткой пропускаем
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	f := p.format
	for i := start; i < end; i++ {
		lineNr := i + 1
		row := i - start
		col := 0
		for _, ch := range lines[i] {
			cell := vec.Vec3{X: 0, Y: -row, Z: col}
			col++

			switch ch {
			case SymbolBlank:
				continue
			case SymbolIris:
				f.iris = append(f.iris, cell)
				f.roles[cell] = RoleIris
			case SymbolExit:
				p.exits++
				if p.exits > 1 {
					return p.fail(lineNr, "more than one exit '*' in grid")
				}
				f.exit = cell
				f.iris = append(f.iris, cell)
				f.roles[cell] = RoleIris
			case SymbolControl:
				// Без объявления управляющим блоком оказался бы даже воздух
				if !p.controlDeclared {
					return p.fail(lineNr, "control symbol %q used in grid but not declared", ch)
				}
				f.control = append(f.control, cell)
				f.roles[cell] = RoleControl
			default:
				if _, declared := f.symbols[ch]; !declared {
					return p.fail(lineNr, "unknown symbol %q in grid", ch)
				}
				f.frame[cell] = ch
				f.frameOrder = append(f.frameOrder, cell)
				f.roles[cell] = RoleFrame
			}
		}
	}
	return nil
}

func (p *parser) finish() error {
	f := p.format
	if p.exits == 0 {
		return p.fail(0, "missing exit '*' in grid")
	}
	if len(f.control) < 2 {
		return p.fail(0, "at least 2 control cells '-' required, found %d", len(f.control))
	}

	open, err := p.parseMaterials(p.openLine, p.openText)
	if err != nil {
		return err
	}
	closed, err := p.parseMaterials(p.closedLine, p.closedText)
	if err != nil {
		return err
	}
	f.open, f.closed = open, closed
	f.sealable = isSealable(f.iris)
	return nil
}

func splitLines(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	raw := strings.Split(string(data), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
