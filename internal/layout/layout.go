// Пакет layout — резолвер координат в пути Maven-раскладки.
//
// Release-координата отображается в детерминированный путь:
//
//	<g-как-путь>/<a>/<v>/<a>-<v>[-<classifier>].<ext>
//
// Snapshot-маркер (1.0-SNAPSHOT) при деплое разворачивается
// в timestamp-версию <base>-<yyyyMMdd.HHmmss>-<buildNumber>;
// директорией версии при этом остаётся литеральный маркер,
// так что несколько timestamp-артефактов сосуществуют в одной директории.
package layout

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// MetadataFilename — имя дескриптора метаданных уровня группы.
const MetadataFilename = "maven-metadata.xml"

// DescriptorType — тип (расширение) файла-дескриптора проекта.
const DescriptorType = "pom"

// SnapshotTimestampFormat — формат UTC-штампа развёрнутой snapshot-версии.
const SnapshotTimestampFormat = "20060102.150405"

// sidecarSuffixes — расширения sidecar-файлов контрольных сумм.
var sidecarSuffixes = []string{".sha1", ".md5"}

// GroupPath возвращает относительный путь группы:
// точки groupId становятся сегментами пути.
func GroupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

// VersionDir возвращает относительный путь директории версии.
// Для snapshot-координаты это директория литерального маркера.
func VersionDir(c model.ArtifactCoordinate) string {
	return path.Join(GroupPath(c.GroupID), c.ArtifactID, c.Version)
}

// ArtifactFileName возвращает имя файла артефакта для указанной версии
// (литеральной или развёрнутой timestamp-версии).
func ArtifactFileName(c model.ArtifactCoordinate, version string) string {
	name := c.ArtifactID + "-" + version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Type
}

// DescriptorFileName возвращает имя файла дескриптора (POM) для версии.
// Дескриптор классификатора не имеет.
func DescriptorFileName(c model.ArtifactCoordinate, version string) string {
	return c.ArtifactID + "-" + version + "." + DescriptorType
}

// ArtifactPath возвращает относительный путь файла артефакта для версии.
func ArtifactPath(c model.ArtifactCoordinate, version string) string {
	return path.Join(VersionDir(c), ArtifactFileName(c, version))
}

// GroupMetadataPath возвращает относительный путь дескриптора
// метаданных уровня группы для координаты.
func GroupMetadataPath(c model.ArtifactCoordinate) string {
	return path.Join(GroupPath(c.GroupID), c.ArtifactID, MetadataFilename)
}

// ExpandSnapshot разворачивает snapshot-маркер координаты
// в timestamp-версию <base>-<штамп UTC>-<buildNumber>.
// Build number = 1 + максимальный build number среди файлов,
// уже лежащих в директории литеральной snapshot-версии (versionDirAbs).
// Отсутствующая директория означает первый деплой (buildNumber = 1).
func ExpandSnapshot(c model.ArtifactCoordinate, versionDirAbs string, now time.Time) (string, error) {
	if !c.IsSnapshot() {
		return "", fmt.Errorf("версия %q не является snapshot-маркером", c.Version)
	}

	build, err := nextBuildNumber(c, versionDirAbs)
	if err != nil {
		return "", err
	}

	stamp := now.UTC().Format(SnapshotTimestampFormat)
	return fmt.Sprintf("%s-%s-%d", c.BaseVersion(), stamp, build), nil
}

// nextBuildNumber сканирует директорию snapshot-версии и возвращает
// следующий build number для координаты.
func nextBuildNumber(c model.ArtifactCoordinate, versionDirAbs string) (int, error) {
	entries, err := os.ReadDir(versionDirAbs)
	if os.IsNotExist(err) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения директории %s: %w", versionDirAbs, err)
	}

	// <artifactId>-<base>-<yyyyMMdd.HHmmss>-<N>...
	re := regexp.MustCompile(
		"^" + regexp.QuoteMeta(c.ArtifactID+"-"+c.BaseVersion()) + `-\d{8}\.\d{6}-(\d+)`,
	)

	maxBuild := 0
	for _, e := range entries {
		if e.IsDir() || isSidecar(e.Name()) {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		if n > maxBuild {
			maxBuild = n
		}
	}

	return maxBuild + 1, nil
}

// isSidecar проверяет, является ли имя файла sidecar-файлом контрольной суммы.
func isSidecar(name string) bool {
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// IsRepositoryFile возвращает true для файлов, которые учитываются
// как артефакты при сканировании: не sidecar, не дескриптор метаданных
// группы и не временный файл атомарной записи.
func IsRepositoryFile(name string) bool {
	if isSidecar(name) || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return name != MetadataFilename
}

// ParseArtifactPath восстанавливает координату из относительного пути
// файла артефакта (обратное отображение для сканера).
// Ожидаемая структура: <группа...>/<artifactId>/<версия>/<имя файла>.
func ParseArtifactPath(rel string) (model.ArtifactCoordinate, error) {
	var c model.ArtifactCoordinate

	parts := strings.Split(path.Clean(rel), "/")
	if len(parts) < 4 {
		return c, fmt.Errorf("путь %q слишком короткий для координаты", rel)
	}

	filename := parts[len(parts)-1]
	c.Version = parts[len(parts)-2]
	c.ArtifactID = parts[len(parts)-3]
	c.GroupID = strings.Join(parts[:len(parts)-3], ".")

	ext := path.Ext(filename)
	if ext == "" {
		return c, fmt.Errorf("файл %q без расширения", filename)
	}
	c.Type = strings.TrimPrefix(ext, ".")
	base := strings.TrimSuffix(filename, ext)

	prefix := c.ArtifactID + "-"
	if !strings.HasPrefix(base, prefix) {
		return c, fmt.Errorf("имя файла %q не начинается с artifactId %q", filename, c.ArtifactID)
	}
	rest := strings.TrimPrefix(base, prefix)

	// Для snapshot-директории имя файла содержит развёрнутую версию.
	versionPart := c.Version
	if strings.HasSuffix(c.Version, model.SnapshotSuffix) {
		expandedRe := regexp.MustCompile(
			"^" + regexp.QuoteMeta(strings.TrimSuffix(c.Version, model.SnapshotSuffix)) + `-\d{8}\.\d{6}-\d+`,
		)
		m := expandedRe.FindString(rest)
		if m == "" {
			return c, fmt.Errorf("имя файла %q не содержит развёрнутой snapshot-версии %q", filename, c.Version)
		}
		versionPart = m
	}

	if !strings.HasPrefix(rest, versionPart) {
		return c, fmt.Errorf("имя файла %q не содержит версии %q", filename, c.Version)
	}
	rest = strings.TrimPrefix(rest, versionPart)

	if rest != "" {
		if !strings.HasPrefix(rest, "-") {
			return c, fmt.Errorf("некорректный остаток имени файла %q", filename)
		}
		c.Classifier = strings.TrimPrefix(rest, "-")
	}

	return c, nil
}
