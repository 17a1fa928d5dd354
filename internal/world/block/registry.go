package block

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BlockID представляет идентификатор материала блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID         BlockID = iota // 0
	StoneBlockID                      // 1
	GrassBlockID                      // 2
	WaterBlockID                      // 3
	SandBlockID                       // 4
	DirtBlockID                       // 5
	ObsidianBlockID                   // 6
	CobblestoneBlockID                // 7
	GlowstoneBlockID                  // 8
	LavaBlockID                       // 9

	// Декоративные блоки (начиная с 100)
	FlowerBlockID BlockID = 100 // Цветок
	TreeBlockID   BlockID = 101 // Дерево
	CactusBlockID BlockID = 102 // Кактус

	// Интерактивные блоки (начиная с 200)
	ChestBlockID       BlockID = 200 // Сундук
	DoorBlockID        BlockID = 201 // Дверь
	SignBlockID        BlockID = 202 // Табличка на стене
	StoneButtonBlockID BlockID = 203 // Каменная кнопка
	WoodButtonBlockID  BlockID = 204 // Деревянная кнопка

	// Специальные блоки (начиная с 1000)
	PortalBlockID  BlockID = 1000 // Поверхность портала
	SpawnerBlockID BlockID = 1001 // Спаунер
	GatewayBlockID BlockID = 1002 // Шлюз (альтернативная поверхность)
)

// TagPrefix префикс тега класса материалов в описаниях
const TagPrefix = "#"

var (
	// ErrDuplicateID материал с таким ID уже зарегистрирован
	ErrDuplicateID = errors.New("block id already registered")
	// ErrDuplicateName материал с таким именем уже зарегистрирован
	ErrDuplicateName = errors.New("block name already registered")
	// ErrUnknownMaterial имя или ID не найдены в регистре
	ErrUnknownMaterial = errors.New("unknown material")
)

// Registry хранит соответствие имён, числовых ID и тегов материалов.
// Создаётся явно и передаётся туда, где нужен; глобального состояния нет.
type Registry struct {
	byID   map[BlockID]string
	byName map[string]BlockID
	tags   map[string][]BlockID
}

// NewRegistry создаёт пустой регистр материалов
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[BlockID]string),
		byName: make(map[string]BlockID),
		tags:   make(map[string][]BlockID),
	}
}

// NewDefaultRegistry создаёт регистр со стандартным набором материалов и тегов
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	defaults := []struct {
		id   BlockID
		name string
	}{
		{AirBlockID, "air"},
		{StoneBlockID, "stone"},
		{GrassBlockID, "grass"},
		{WaterBlockID, "water"},
		{SandBlockID, "sand"},
		{DirtBlockID, "dirt"},
		{ObsidianBlockID, "obsidian"},
		{CobblestoneBlockID, "cobblestone"},
		{GlowstoneBlockID, "glowstone"},
		{LavaBlockID, "lava"},
		{FlowerBlockID, "flower"},
		{TreeBlockID, "tree"},
		{CactusBlockID, "cactus"},
		{ChestBlockID, "chest"},
		{DoorBlockID, "door"},
		{SignBlockID, "wall_sign"},
		{StoneButtonBlockID, "stone_button"},
		{WoodButtonBlockID, "wood_button"},
		{PortalBlockID, "portal"},
		{SpawnerBlockID, "spawner"},
		{GatewayBlockID, "end_gateway"},
	}
	for _, d := range defaults {
		// Стандартный набор не содержит дубликатов
		_ = r.Register(d.id, d.name)
	}

	_ = r.DefineTag("buttons", "stone_button", "wood_button")
	_ = r.DefineTag("signs", "wall_sign")
	_ = r.DefineTag("liquids", "water", "lava")
	_ = r.DefineTag("stones", "stone", "cobblestone", "obsidian")
	return r
}

// Register добавляет материал в регистр
func (r *Registry) Register(id BlockID, name string) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("empty name for block %d", id)
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.byID[id] = name
	r.byName[name] = id
	return nil
}

// Name возвращает каноническое имя материала
func (r *Registry) Name(id BlockID) (string, bool) {
	name, exists := r.byID[id]
	return name, exists
}

// NameOrID возвращает имя материала или его числовой ID, если имя неизвестно
func (r *Registry) NameOrID(id BlockID) string {
	if name, exists := r.byID[id]; exists {
		return name
	}
	return strconv.Itoa(int(id))
}

// IsValidBlockID проверяет, является ли ID зарегистрированным материалом
func (r *Registry) IsValidBlockID(id BlockID) bool {
	_, exists := r.byID[id]
	return exists
}

// Lookup ищет материал по имени (без учёта регистра) или по устаревшему
// числовому идентификатору.
func (r *Registry) Lookup(token string) (BlockID, bool) {
	token = normalizeName(token)
	if id, exists := r.byName[token]; exists {
		return id, true
	}

	// Устаревшие числовые ID
	n, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, false
	}
	id := BlockID(n)
	if _, exists := r.byID[id]; !exists {
		return 0, false
	}
	return id, true
}

// DefineTag задаёт (или заменяет) состав тега класса материалов
func (r *Registry) DefineTag(tag string, names ...string) error {
	tag = normalizeTag(tag)
	if tag == "" {
		return errors.New("empty tag name")
	}

	members := make([]BlockID, 0, len(names))
	for _, name := range names {
		id, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("tag #%s: %w: %s", tag, ErrUnknownMaterial, name)
		}
		members = append(members, id)
	}
	r.tags[tag] = members
	return nil
}

// ExpandTag возвращает материалы, входящие в тег. Тег можно передавать
// как с префиксом '#', так и без него.
func (r *Registry) ExpandTag(tag string) ([]BlockID, bool) {
	members, exists := r.tags[normalizeTag(tag)]
	if !exists {
		return nil, false
	}
	out := make([]BlockID, len(members))
	copy(out, members)
	return out, true
}

// LookupMaterial то же, что Lookup; удовлетворяет gate.MaterialResolver
func (r *Registry) LookupMaterial(name string) (BlockID, bool) {
	return r.Lookup(name)
}

// ExpandMaterialTag то же, что ExpandTag; удовлетворяет gate.MaterialResolver
func (r *Registry) ExpandMaterialTag(tag string) ([]BlockID, bool) {
	return r.ExpandTag(tag)
}

// ResolveSet собирает множество из имён материалов и тегов '#tag'
func (r *Registry) ResolveSet(names []string) (Set, error) {
	set := NewSet()
	for _, name := range names {
		if strings.HasPrefix(strings.TrimSpace(name), TagPrefix) {
			members, ok := r.ExpandTag(name)
			if !ok {
				return nil, fmt.Errorf("%w: tag %s", ErrUnknownMaterial, name)
			}
			for _, id := range members {
				set[id] = struct{}{}
			}
			continue
		}
		id, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMaterial, name)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

// Tags возвращает отсортированный список известных тегов
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(normalizeName(tag), TagPrefix)
}
