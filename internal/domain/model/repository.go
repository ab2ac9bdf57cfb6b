// repository.go — конфигурация управляемого репозитория.
package model

// ManagedRepository — управляемый репозиторий: корень хранения
// и политики записи. Экземпляры создаются из конфигурации при старте
// и после этого не изменяются.
type ManagedRepository struct {
	// ID — уникальный идентификатор репозитория
	ID string `json:"id"`
	// StorageRoot — корневая директория хранения артефактов
	StorageRoot string `json:"storage_root"`
	// BlockRedeployments — запрет повторного деплоя release-версий.
	// На snapshot-версии не распространяется: каждый деплой snapshot
	// получает уникальное timestamp-имя файла и коллизий не создаёт.
	BlockRedeployments bool `json:"block_redeployments"`
	// ReleasesEnabled — разрешён деплой release-версий
	ReleasesEnabled bool `json:"releases_enabled"`
	// SnapshotsEnabled — разрешён деплой snapshot-версий
	SnapshotsEnabled bool `json:"snapshots_enabled"`
}

// AcceptsVersion проверяет, разрешает ли политика репозитория
// деплой данной координаты.
func (r ManagedRepository) AcceptsVersion(c ArtifactCoordinate) bool {
	if c.IsSnapshot() {
		return r.SnapshotsEnabled
	}
	return r.ReleasesEnabled
}
