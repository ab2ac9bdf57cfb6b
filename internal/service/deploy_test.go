package service

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/goartrepo/internal/domain/model"
	"github.com/bigkaa/goartrepo/internal/metadata"
)

func newTestDeployService(t *testing.T, repos ...model.ManagedRepository) *DeployService {
	t.Helper()
	if len(repos) == 0 {
		repos = []model.ManagedRepository{{
			ID:               "releases",
			StorageRoot:      filepath.Join(t.TempDir(), "releases"),
			ReleasesEnabled:  true,
			SnapshotsEnabled: true,
		}}
	}

	svc, err := NewDeployService(repos, newTestMetaStore(t), slog.Default())
	if err != nil {
		t.Fatalf("ошибка создания движка деплоя: %v", err)
	}
	return svc
}

func releaseCoord() model.ArtifactCoordinate {
	return model.ArtifactCoordinate{
		GroupID: "com.example", ArtifactID: "app", Version: "1.0", Type: "jar",
	}
}

// TestDeploy_Release проверяет полный набор файлов release-деплоя:
// артефакт, дескриптор группы и sidecar-файлы контрольных сумм.
func TestDeploy_Release(t *testing.T) {
	svc := newTestDeployService(t)

	result, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("jar payload")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя: %v", deployErr)
	}

	if result.ID == "" {
		t.Error("идентификатор запроса не присвоен")
	}
	if result.DeployedVersion != "1.0" {
		t.Errorf("deployed version: ожидалось 1.0, получено %s", result.DeployedVersion)
	}
	if result.Files.Primary != "com/example/app/1.0/app-1.0.jar" {
		t.Errorf("неожиданный путь артефакта: %s", result.Files.Primary)
	}
	if result.Files.GroupMetadata != "com/example/app/maven-metadata.xml" {
		t.Errorf("неожиданный путь дескриптора группы: %s", result.Files.GroupMetadata)
	}
	if result.Files.Descriptor != "" {
		t.Errorf("дескриптор не запрашивался, но записан: %s", result.Files.Descriptor)
	}

	// По sidecar на алгоритм для артефакта и дескриптора группы
	if len(result.Files.Checksums) != 4 {
		t.Errorf("ожидалось 4 sidecar-файла, получено %d: %v",
			len(result.Files.Checksums), result.Files.Checksums)
	}

	store := svc.repos["releases"].store
	expectedFiles := []string{
		result.Files.Primary,
		result.Files.Primary + ".sha1",
		result.Files.Primary + ".md5",
		result.Files.GroupMetadata,
		result.Files.GroupMetadata + ".sha1",
		result.Files.GroupMetadata + ".md5",
	}
	for _, rel := range expectedFiles {
		if !store.Exists(rel) {
			t.Errorf("файл %s не записан", rel)
		}
	}

	// Терминальное состояние — succeeded
	last := result.State[len(result.State)-1]
	if string(last.To) != "succeeded" {
		t.Errorf("ожидалось терминальное состояние succeeded, получено %s", last.To)
	}

	// Артефакт зарегистрирован в metadata-репозитории
	artifacts, err := svc.meta.GetArtifacts("releases", "com.example", "app", "1.0")
	if err != nil {
		t.Fatalf("ошибка чтения metadata-репозитория: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "app-1.0.jar" {
		t.Errorf("артефакт не зарегистрирован: %v", artifacts)
	}
}

// TestDeploy_WithDescriptorAndClassifier проверяет деплой с приложенным
// POM и классификатором.
func TestDeploy_WithDescriptorAndClassifier(t *testing.T) {
	svc := newTestDeployService(t)

	coord := releaseCoord()
	coord.Classifier = "sources"

	result, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   coord,
		Artifact:     bytes.NewReader([]byte("sources payload")),
		Descriptor:   bytes.NewReader([]byte("<project/>")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя: %v", deployErr)
	}

	if result.Files.Primary != "com/example/app/1.0/app-1.0-sources.jar" {
		t.Errorf("неожиданный путь артефакта: %s", result.Files.Primary)
	}
	// Дескриптор классификатора не имеет
	if result.Files.Descriptor != "com/example/app/1.0/app-1.0.pom" {
		t.Errorf("неожиданный путь дескриптора: %s", result.Files.Descriptor)
	}
}

// TestDeploy_GeneratedDescriptor проверяет синтез минимального POM.
func TestDeploy_GeneratedDescriptor(t *testing.T) {
	svc := newTestDeployService(t)

	result, deployErr := svc.Deploy(DeployParams{
		RepositoryID:       "releases",
		Coordinate:         releaseCoord(),
		Artifact:           bytes.NewReader([]byte("payload")),
		GenerateDescriptor: true,
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя: %v", deployErr)
	}

	store := svc.repos["releases"].store
	data, err := os.ReadFile(store.FullPath(result.Files.Descriptor))
	if err != nil {
		t.Fatalf("дескриптор не записан: %v", err)
	}
	if !strings.Contains(string(data), "<groupId>com.example</groupId>") {
		t.Errorf("синтезированный POM некорректен:\n%s", data)
	}
}

// TestDeploy_RepositoryNotFound проверяет деплой в несконфигурированный
// репозиторий.
func TestDeploy_RepositoryNotFound(t *testing.T) {
	svc := newTestDeployService(t)

	_, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "unknown",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("x")),
	})
	if deployErr == nil {
		t.Fatal("ожидалась ошибка для неизвестного репозитория")
	}
	if deployErr.StatusCode != 404 {
		t.Errorf("ожидался статус 404, получен %d", deployErr.StatusCode)
	}
}

// TestDeploy_InvalidCoordinate проверяет отклонение неполной координаты.
func TestDeploy_InvalidCoordinate(t *testing.T) {
	svc := newTestDeployService(t)

	_, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   model.ArtifactCoordinate{GroupID: "com.example"},
		Artifact:     bytes.NewReader([]byte("x")),
	})
	if deployErr == nil {
		t.Fatal("ожидалась ошибка валидации")
	}
	if deployErr.StatusCode != 400 {
		t.Errorf("ожидался статус 400, получен %d", deployErr.StatusCode)
	}
}

// TestDeploy_VersionPolicy проверяет политику допустимых версий репозитория.
func TestDeploy_VersionPolicy(t *testing.T) {
	svc := newTestDeployService(t, model.ManagedRepository{
		ID:               "snapshots",
		StorageRoot:      filepath.Join(t.TempDir(), "snapshots"),
		ReleasesEnabled:  false,
		SnapshotsEnabled: true,
	})

	_, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "snapshots",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("x")),
	})
	if deployErr == nil {
		t.Fatal("release-деплой в snapshot-репозиторий должен быть отклонён")
	}
	if deployErr.StatusCode != 409 {
		t.Errorf("ожидался статус 409, получен %d", deployErr.StatusCode)
	}
}

// TestDeploy_BlockedRedeployment проверяет политику блокировки:
// повторный деплой отклоняется, содержимое первого деплоя не изменено.
func TestDeploy_BlockedRedeployment(t *testing.T) {
	svc := newTestDeployService(t, model.ManagedRepository{
		ID:                 "releases",
		StorageRoot:        filepath.Join(t.TempDir(), "releases"),
		BlockRedeployments: true,
		ReleasesEnabled:    true,
		SnapshotsEnabled:   true,
	})

	original := []byte("первый деплой")
	result, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader(original),
	})
	if deployErr != nil {
		t.Fatalf("ошибка первого деплоя: %v", deployErr)
	}

	_, deployErr = svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("второй деплой")),
	})
	if deployErr == nil {
		t.Fatal("повторный деплой должен быть отклонён")
	}
	if deployErr.StatusCode != 409 {
		t.Errorf("ожидался статус 409, получен %d", deployErr.StatusCode)
	}

	store := svc.repos["releases"].store
	data, err := os.ReadFile(store.FullPath(result.Files.Primary))
	if err != nil {
		t.Fatalf("ошибка чтения артефакта: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Error("содержимое артефакта изменено отклонённым деплоем")
	}
}

// TestDeploy_RedeployRefreshesChecksums проверяет идемпотентный повторный
// деплой без политики блокировки: содержимое и контрольные суммы обновляются.
func TestDeploy_RedeployRefreshesChecksums(t *testing.T) {
	svc := newTestDeployService(t)

	first, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("версия один")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка первого деплоя: %v", deployErr)
	}

	store := svc.repos["releases"].store
	firstSidecar, err := os.ReadFile(store.FullPath(first.Files.Primary + ".sha1"))
	if err != nil {
		t.Fatalf("ошибка чтения sidecar: %v", err)
	}

	second, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("версия два — другое содержимое")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка повторного деплоя: %v", deployErr)
	}
	if second.Files.Primary != first.Files.Primary {
		t.Errorf("повторный деплой должен попадать в тот же путь: %s != %s",
			second.Files.Primary, first.Files.Primary)
	}

	secondSidecar, err := os.ReadFile(store.FullPath(first.Files.Primary + ".sha1"))
	if err != nil {
		t.Fatalf("ошибка чтения sidecar: %v", err)
	}
	if bytes.Equal(firstSidecar, secondSidecar) {
		t.Error("sidecar должен обновиться после повторного деплоя")
	}

	// Дескриптор группы не дублирует версию
	meta, err := metadata.Read(store.FullPath("com/example/app/maven-metadata.xml"))
	if err != nil {
		t.Fatalf("ошибка чтения дескриптора группы: %v", err)
	}
	if len(meta.Versioning.Versions) != 1 {
		t.Errorf("версия не должна дублироваться: %v", meta.Versioning.Versions)
	}
}

// TestDeploy_SnapshotExpansion проверяет, что два snapshot-деплоя дают
// разные timestamp-имена в одной директории, а дескриптор группы
// содержит литеральный маркер ровно один раз.
func TestDeploy_SnapshotExpansion(t *testing.T) {
	svc := newTestDeployService(t)

	coord := model.ArtifactCoordinate{
		GroupID: "com.example", ArtifactID: "app", Version: "1.0-SNAPSHOT", Type: "jar",
	}

	first, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   coord,
		Artifact:     bytes.NewReader([]byte("snapshot один")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка первого деплоя: %v", deployErr)
	}

	second, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   coord,
		Artifact:     bytes.NewReader([]byte("snapshot два")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка второго деплоя: %v", deployErr)
	}

	if first.DeployedVersion == second.DeployedVersion {
		t.Errorf("timestamp-версии должны различаться: %s", first.DeployedVersion)
	}
	if first.Files.Primary == second.Files.Primary {
		t.Errorf("файлы snapshot-деплоев должны различаться: %s", first.Files.Primary)
	}

	// Оба файла в директории литерального маркера
	for _, rel := range []string{first.Files.Primary, second.Files.Primary} {
		if !strings.HasPrefix(rel, "com/example/app/1.0-SNAPSHOT/") {
			t.Errorf("файл вне директории snapshot-версии: %s", rel)
		}
		if strings.Contains(filepath.Base(rel), "SNAPSHOT") {
			t.Errorf("имя файла должно содержать развёрнутую версию: %s", rel)
		}
	}

	store := svc.repos["releases"].store
	if !store.Exists(first.Files.Primary) || !store.Exists(second.Files.Primary) {
		t.Error("оба snapshot-файла должны сосуществовать")
	}

	meta, err := metadata.Read(store.FullPath("com/example/app/maven-metadata.xml"))
	if err != nil {
		t.Fatalf("ошибка чтения дескриптора группы: %v", err)
	}
	count := 0
	for _, v := range meta.Versioning.Versions {
		if v == "1.0-SNAPSHOT" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("литеральный маркер должен входить в список ровно один раз: %v",
			meta.Versioning.Versions)
	}
	if meta.Versioning.Release != "" {
		t.Errorf("release не должен указывать на snapshot: %s", meta.Versioning.Release)
	}
}

// TestDeploy_SnapshotIgnoresBlockPolicy проверяет, что политика блокировки
// не мешает snapshot-деплоям.
func TestDeploy_SnapshotIgnoresBlockPolicy(t *testing.T) {
	svc := newTestDeployService(t, model.ManagedRepository{
		ID:                 "releases",
		StorageRoot:        filepath.Join(t.TempDir(), "releases"),
		BlockRedeployments: true,
		ReleasesEnabled:    true,
		SnapshotsEnabled:   true,
	})

	coord := model.ArtifactCoordinate{
		GroupID: "com.example", ArtifactID: "app", Version: "1.0-SNAPSHOT", Type: "jar",
	}

	for i := 0; i < 2; i++ {
		if _, deployErr := svc.Deploy(DeployParams{
			RepositoryID: "releases",
			Coordinate:   coord,
			Artifact:     bytes.NewReader([]byte("snapshot")),
		}); deployErr != nil {
			t.Fatalf("snapshot-деплой %d должен пройти: %v", i+1, deployErr)
		}
	}
}

// TestDeploy_DefaultType проверяет нормализацию типа по умолчанию.
func TestDeploy_DefaultType(t *testing.T) {
	svc := newTestDeployService(t)

	result, deployErr := svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate: model.ArtifactCoordinate{
			GroupID: "com.example", ArtifactID: "app", Version: "1.0",
		},
		Artifact: bytes.NewReader([]byte("payload")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя: %v", deployErr)
	}
	if !strings.HasSuffix(result.Files.Primary, ".jar") {
		t.Errorf("тип по умолчанию jar не применён: %s", result.Files.Primary)
	}
}

// TestDeploy_PropagatesRequestID проверяет, что идентификатор запроса,
// присвоенный HTTP-слоем, переносится в результат деплоя и что при
// его отсутствии сервис генерирует собственный.
func TestDeploy_PropagatesRequestID(t *testing.T) {
	svc := newTestDeployService(t)

	result, deployErr := svc.Deploy(DeployParams{
		RequestID:    "req-42",
		RepositoryID: "releases",
		Coordinate:   releaseCoord(),
		Artifact:     bytes.NewReader([]byte("payload")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя: %v", deployErr)
	}
	if result.ID != "req-42" {
		t.Errorf("идентификатор запроса: ожидалось req-42, получено %s", result.ID)
	}

	coord := releaseCoord()
	coord.Version = "2.0"
	result, deployErr = svc.Deploy(DeployParams{
		RepositoryID: "releases",
		Coordinate:   coord,
		Artifact:     bytes.NewReader([]byte("payload")),
	})
	if deployErr != nil {
		t.Fatalf("ошибка деплоя без идентификатора: %v", deployErr)
	}
	if result.ID == "" {
		t.Error("при пустом идентификаторе сервис должен сгенерировать собственный")
	}
}
