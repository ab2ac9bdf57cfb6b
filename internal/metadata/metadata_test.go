package metadata

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

func testCoord(version string) model.ArtifactCoordinate {
	return model.ArtifactCoordinate{
		GroupID: "com.example", ArtifactID: "app", Version: version, Type: "jar",
	}
}

// TestRead_Missing проверяет, что отсутствующий дескриптор не ошибка.
func TestRead_Missing(t *testing.T) {
	m, err := Read(filepath.Join(t.TempDir(), "maven-metadata.xml"))
	if err != nil {
		t.Fatalf("отсутствующий дескриптор не должен быть ошибкой: %v", err)
	}
	if m != nil {
		t.Error("ожидался nil для отсутствующего дескриптора")
	}
}

// TestUpdate_CreatesDescriptor проверяет первичную генерацию дескриптора.
func TestUpdate_CreatesDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "com", "example", "app", "maven-metadata.xml")
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	if err := Update(path, testCoord("1.0"), now); err != nil {
		t.Fatalf("ошибка обновления дескриптора: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения дескриптора: %v", err)
	}
	if m == nil {
		t.Fatal("дескриптор не создан")
	}

	if m.GroupID != "com.example" || m.ArtifactID != "app" {
		t.Errorf("некорректная координата: %s:%s", m.GroupID, m.ArtifactID)
	}
	if m.Versioning.Latest != "1.0" {
		t.Errorf("latest: ожидалось 1.0, получено %s", m.Versioning.Latest)
	}
	if m.Versioning.Release != "1.0" {
		t.Errorf("release: ожидалось 1.0, получено %s", m.Versioning.Release)
	}
	if len(m.Versioning.Versions) != 1 || m.Versioning.Versions[0] != "1.0" {
		t.Errorf("versions: ожидалось [1.0], получено %v", m.Versioning.Versions)
	}
	if m.Versioning.LastUpdated != "20260401120000" {
		t.Errorf("lastUpdated: ожидалось 20260401120000, получено %s", m.Versioning.LastUpdated)
	}
}

// TestUpdate_AppendsVersions проверяет накопление версий без дублей.
func TestUpdate_AppendsVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maven-metadata.xml")
	now := time.Now()

	for _, v := range []string{"1.0", "1.1", "1.1", "2.0"} {
		if err := Update(path, testCoord(v), now); err != nil {
			t.Fatalf("ошибка обновления для версии %s: %v", v, err)
		}
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения дескриптора: %v", err)
	}

	expected := []string{"1.0", "1.1", "2.0"}
	if len(m.Versioning.Versions) != len(expected) {
		t.Fatalf("versions: ожидалось %v, получено %v", expected, m.Versioning.Versions)
	}
	for i, v := range expected {
		if m.Versioning.Versions[i] != v {
			t.Errorf("versions[%d]: ожидалось %s, получено %s", i, v, m.Versioning.Versions[i])
		}
	}
	if m.Versioning.Latest != "2.0" {
		t.Errorf("latest: ожидалось 2.0, получено %s", m.Versioning.Latest)
	}
}

// TestUpdate_SnapshotDoesNotTouchRelease проверяет, что snapshot-деплой
// обновляет latest, но не release.
func TestUpdate_SnapshotDoesNotTouchRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maven-metadata.xml")
	now := time.Now()

	if err := Update(path, testCoord("1.0"), now); err != nil {
		t.Fatalf("ошибка обновления: %v", err)
	}
	if err := Update(path, testCoord("1.1-SNAPSHOT"), now); err != nil {
		t.Fatalf("ошибка обновления: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения дескриптора: %v", err)
	}
	if m.Versioning.Latest != "1.1-SNAPSHOT" {
		t.Errorf("latest: ожидалось 1.1-SNAPSHOT, получено %s", m.Versioning.Latest)
	}
	if m.Versioning.Release != "1.0" {
		t.Errorf("release: ожидалось 1.0, получено %s", m.Versioning.Release)
	}
	if !m.HasVersion("1.1-SNAPSHOT") {
		t.Error("список версий должен содержать литеральный snapshot-маркер")
	}
}

// TestSynthesizePOM проверяет минимальный синтезированный POM.
func TestSynthesizePOM(t *testing.T) {
	data, err := SynthesizePOM(testCoord("3.1"))
	if err != nil {
		t.Fatalf("ошибка синтеза POM: %v", err)
	}

	pom := string(data)
	for _, fragment := range []string{
		"<modelVersion>4.0.0</modelVersion>",
		"<groupId>com.example</groupId>",
		"<artifactId>app</artifactId>",
		"<version>3.1</version>",
		"<packaging>jar</packaging>",
	} {
		if !strings.Contains(pom, fragment) {
			t.Errorf("POM должен содержать %s:\n%s", fragment, pom)
		}
	}
}
