package metarepo

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// testFacet — простейший фасет для проверок хранилища.
type testFacet struct {
	FacetName string `json:"name"`
	Payload   string `json:"payload"`
}

func (f *testFacet) FacetID() string { return "test-facet" }
func (f *testFacet) Name() string    { return f.FacetName }
func (f *testFacet) Marshal() ([]byte, error) {
	return json.Marshal(f)
}
func (f *testFacet) Unmarshal(data []byte) error {
	return json.Unmarshal(data, f)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), map[string]FacetFactory{
		"test-facet": func() MetadataFacet { return &testFacet{} },
	}, slog.Default())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	return s
}

func addArtifact(t *testing.T, s *Store, repoID, ns, project, version, name string) {
	t.Helper()
	err := s.AddArtifact(repoID, ns, project, version, model.ArtifactInfo{
		Name:         name,
		Version:      version,
		Size:         100,
		WhenGathered: time.Now().UTC(),
		Facets:       map[string]string{model.FacetKindArtifactType: "jar"},
	})
	if err != nil {
		t.Fatalf("ошибка регистрации артефакта: %v", err)
	}
}

// TestAddArtifact_AndBrowse проверяет регистрацию и навигацию по дереву.
func TestAddArtifact_AndBrowse(t *testing.T) {
	s := newTestStore(t)

	addArtifact(t, s, "releases", "com.example", "app", "1.0", "app-1.0.jar")
	addArtifact(t, s, "releases", "com.example", "app", "1.0", "app-1.0.pom")
	addArtifact(t, s, "releases", "com.example.sub", "lib", "2.0", "lib-2.0.jar")
	addArtifact(t, s, "releases", "org.other", "tool", "0.1", "tool-0.1.jar")

	roots, err := s.GetRootNamespaces("releases")
	if err != nil {
		t.Fatalf("ошибка получения корневых namespace: %v", err)
	}
	if !reflect.DeepEqual(roots, []string{"com", "org"}) {
		t.Errorf("корневые namespace: ожидалось [com org], получено %v", roots)
	}

	children, err := s.GetNamespaces("releases", "com.example")
	if err != nil {
		t.Fatalf("ошибка получения дочерних namespace: %v", err)
	}
	if !reflect.DeepEqual(children, []string{"sub"}) {
		t.Errorf("дочерние namespace: ожидалось [sub], получено %v", children)
	}

	projects, err := s.GetProjects("releases", "com.example")
	if err != nil {
		t.Fatalf("ошибка получения проектов: %v", err)
	}
	if !reflect.DeepEqual(projects, []string{"app"}) {
		t.Errorf("проекты: ожидалось [app], получено %v", projects)
	}

	versions, err := s.GetProjectVersions("releases", "com.example", "app")
	if err != nil {
		t.Fatalf("ошибка получения версий: %v", err)
	}
	if !reflect.DeepEqual(versions, []string{"1.0"}) {
		t.Errorf("версии: ожидалось [1.0], получено %v", versions)
	}

	artifacts, err := s.GetArtifacts("releases", "com.example", "app", "1.0")
	if err != nil {
		t.Fatalf("ошибка получения артефактов: %v", err)
	}
	if len(artifacts) != 2 {
		t.Errorf("артефакты: ожидалось 2, получено %d", len(artifacts))
	}
}

// TestAddArtifact_ReplacesSameName проверяет замену артефакта с тем же именем.
func TestAddArtifact_ReplacesSameName(t *testing.T) {
	s := newTestStore(t)

	addArtifact(t, s, "releases", "com.example", "app", "1.0", "app-1.0.jar")
	err := s.AddArtifact("releases", "com.example", "app", "1.0", model.ArtifactInfo{
		Name: "app-1.0.jar", Version: "1.0", Size: 999, WhenGathered: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("ошибка повторной регистрации: %v", err)
	}

	artifacts, err := s.GetArtifacts("releases", "com.example", "app", "1.0")
	if err != nil {
		t.Fatalf("ошибка получения артефактов: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("ожидался 1 артефакт, получено %d", len(artifacts))
	}
	if artifacts[0].Size != 999 {
		t.Errorf("артефакт не заменён: размер %d", artifacts[0].Size)
	}
}

// TestPersistence проверяет восстановление дерева содержимого с диска.
func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s1, err := New(dir, nil, slog.Default())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	addArtifact(t, s1, "releases", "com.example", "app", "1.0", "app-1.0.jar")

	// Новый экземпляр над той же директорией
	s2, err := New(dir, nil, slog.Default())
	if err != nil {
		t.Fatalf("ошибка восстановления хранилища: %v", err)
	}

	artifacts, err := s2.GetArtifacts("releases", "com.example", "app", "1.0")
	if err != nil {
		t.Fatalf("ошибка получения артефактов: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "app-1.0.jar" {
		t.Errorf("дерево не восстановлено: %v", artifacts)
	}
}

// TestFacets проверяет сохранение, чтение и перечисление фасетов,
// включая имена с '/' (поддиректории).
func TestFacets(t *testing.T) {
	s := newTestStore(t)

	facets := []*testFacet{
		{FacetName: "2026/01/02/120000.000", Payload: "первый"},
		{FacetName: "2026/01/03/090000.000", Payload: "второй"},
	}
	for _, f := range facets {
		if err := s.AddMetadataFacet("releases", f); err != nil {
			t.Fatalf("ошибка сохранения фасета %s: %v", f.FacetName, err)
		}
	}

	names, err := s.GetMetadataFacets("releases", "test-facet")
	if err != nil {
		t.Fatalf("ошибка перечисления фасетов: %v", err)
	}
	expected := []string{"2026/01/02/120000.000", "2026/01/03/090000.000"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("имена фасетов: ожидалось %v, получено %v", expected, names)
	}

	got, err := s.GetMetadataFacet("releases", "test-facet", "2026/01/02/120000.000")
	if err != nil {
		t.Fatalf("ошибка чтения фасета: %v", err)
	}
	if got == nil {
		t.Fatal("фасет не найден")
	}
	if got.(*testFacet).Payload != "первый" {
		t.Errorf("payload: ожидалось %q, получено %q", "первый", got.(*testFacet).Payload)
	}
}

// TestGetMetadataFacet_Missing проверяет (nil, nil) для отсутствующего фасета.
func TestGetMetadataFacet_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetMetadataFacet("releases", "test-facet", "no/such/facet")
	if err != nil {
		t.Fatalf("отсутствующий фасет не должен быть ошибкой: %v", err)
	}
	if got != nil {
		t.Error("ожидался nil для отсутствующего фасета")
	}
}

// TestGetMetadataFacet_UnknownKind проверяет ошибку для
// незарегистрированного вида фасетов.
func TestGetMetadataFacet_UnknownKind(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetMetadataFacet("releases", "unknown-kind", "x"); err == nil {
		t.Error("ожидалась ошибка для незарегистрированного вида фасетов")
	}
}

// TestRemoveMetadataFacets проверяет удаление всех фасетов вида разом.
func TestRemoveMetadataFacets(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddMetadataFacet("releases", &testFacet{FacetName: "a/b", Payload: "x"}); err != nil {
		t.Fatalf("ошибка сохранения фасета: %v", err)
	}

	if err := s.RemoveMetadataFacets("releases", "test-facet"); err != nil {
		t.Fatalf("ошибка удаления фасетов: %v", err)
	}

	names, err := s.GetMetadataFacets("releases", "test-facet")
	if err != nil {
		t.Fatalf("ошибка перечисления фасетов: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("фасеты должны быть удалены, получено %v", names)
	}

	// Повторное удаление — не ошибка
	if err := s.RemoveMetadataFacets("releases", "test-facet"); err != nil {
		t.Errorf("повторное удаление не должно быть ошибкой: %v", err)
	}
}

// TestEmptyRepository проверяет пустые ответы для неизвестного репозитория.
func TestEmptyRepository(t *testing.T) {
	s := newTestStore(t)

	roots, err := s.GetRootNamespaces("unknown")
	if err != nil {
		t.Fatalf("ошибка: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("ожидался пустой список, получено %v", roots)
	}
}
