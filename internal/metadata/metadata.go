// Пакет metadata — дескриптор метаданных уровня группы (maven-metadata.xml)
// и синтез минимального POM-дескриптора проекта.
//
// Дескриптор группы ведёт полный список известных версий координаты
// groupId+artifactId и перегенерируется при каждом успешном деплое.
// Все записи атомарны: temp → fsync → rename.
package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// lastUpdatedFormat — формат поля lastUpdated (UTC).
const lastUpdatedFormat = "20060102150405"

// GroupMetadata — содержимое maven-metadata.xml уровня группы.
type GroupMetadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning — блок versioning дескриптора группы.
type Versioning struct {
	// Latest — последняя задеплоенная версия (release или snapshot)
	Latest string `xml:"latest,omitempty"`
	// Release — последняя задеплоенная release-версия
	Release string `xml:"release,omitempty"`
	// Versions — полный список известных версий, каждая ровно один раз
	Versions []string `xml:"versions>version"`
	// LastUpdated — UTC-штамп последнего обновления дескриптора
	LastUpdated string `xml:"lastUpdated"`
}

// HasVersion проверяет наличие версии в списке.
func (m *GroupMetadata) HasVersion(version string) bool {
	for _, v := range m.Versioning.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// Read читает и разбирает дескриптор группы.
// Возвращает (nil, nil), если дескриптор ещё не существует.
func Read(path string) (*GroupMetadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения дескриптора %s: %w", path, err)
	}

	var m GroupMetadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ошибка разбора дескриптора %s: %w", path, err)
	}
	return &m, nil
}

// Update перегенерирует дескриптор группы после деплоя координаты:
// читает существующий (если есть), добавляет версию, если она ещё
// не известна, обновляет latest/release/lastUpdated и атомарно записывает.
// Повторный деплой уже известной версии список не дублирует.
func Update(path string, c model.ArtifactCoordinate, now time.Time) error {
	m, err := Read(path)
	if err != nil {
		return err
	}
	if m == nil {
		m = &GroupMetadata{GroupID: c.GroupID, ArtifactID: c.ArtifactID}
	}

	if !m.HasVersion(c.Version) {
		m.Versioning.Versions = append(m.Versioning.Versions, c.Version)
	}

	m.Versioning.Latest = c.Version
	if !c.IsSnapshot() {
		m.Versioning.Release = c.Version
	}
	m.Versioning.LastUpdated = now.UTC().Format(lastUpdatedFormat)

	return writeAtomic(path, m)
}

// writeAtomic сериализует дескриптор и записывает его атомарно:
// temp файл → fsync → rename.
func writeAtomic(path string, m *GroupMetadata) error {
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации дескриптора: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи дескриптора: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// pomProject — минимальный POM-дескриптор проекта.
type pomProject struct {
	XMLName      xml.Name `xml:"project"`
	ModelVersion string   `xml:"modelVersion"`
	GroupID      string   `xml:"groupId"`
	ArtifactID   string   `xml:"artifactId"`
	Version      string   `xml:"version"`
	Packaging    string   `xml:"packaging"`
}

// SynthesizePOM синтезирует минимальный POM для координаты.
// Используется деплоем, когда вызывающая сторона запросила генерацию
// дескриптора, не предоставив собственного.
func SynthesizePOM(c model.ArtifactCoordinate) ([]byte, error) {
	p := pomProject{
		ModelVersion: "4.0.0",
		GroupID:      c.GroupID,
		ArtifactID:   c.ArtifactID,
		Version:      c.Version,
		Packaging:    c.Type,
	}

	data, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка синтеза POM: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	return append(data, '\n'), nil
}
