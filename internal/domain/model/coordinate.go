// Пакет model — доменные модели Repository Core.
// ArtifactCoordinate — координата артефакта Maven-раскладки,
// ManagedRepository — конфигурация управляемого репозитория,
// ArtifactInfo — метаданные одного файла артефакта.
package model

import (
	"fmt"
	"strings"
)

// SnapshotSuffix — маркер snapshot-версии. Версия с этим суффиксом
// разворачивается в timestamp-версию при каждом деплое; сам маркер
// используется только как имя директории версии.
const SnapshotSuffix = "-SNAPSHOT"

// ArtifactCoordinate — неизменяемая координата деплоя:
// группа, идентификатор артефакта, версия, опциональный классификатор
// и тип упаковки (расширение файла).
type ArtifactCoordinate struct {
	// GroupID — идентификатор группы (точки превращаются в сегменты пути)
	GroupID string `json:"group_id"`
	// ArtifactID — идентификатор артефакта
	ArtifactID string `json:"artifact_id"`
	// Version — литеральная версия либо snapshot-маркер (1.0-SNAPSHOT)
	Version string `json:"version"`
	// Classifier — классификатор (опционально, например "sources")
	Classifier string `json:"classifier,omitempty"`
	// Type — тип упаковки, он же расширение файла (по умолчанию "jar")
	Type string `json:"type"`
}

// IsSnapshot возвращает true, если версия является snapshot-маркером.
func (c ArtifactCoordinate) IsSnapshot() bool {
	return strings.HasSuffix(c.Version, SnapshotSuffix)
}

// BaseVersion возвращает версию без snapshot-суффикса.
// Для release-версии возвращает версию как есть.
func (c ArtifactCoordinate) BaseVersion() string {
	return strings.TrimSuffix(c.Version, SnapshotSuffix)
}

// Key возвращает строковый ключ координаты без классификатора и типа.
// Используется для advisory-блокировки одновременных деплоев.
func (c ArtifactCoordinate) Key() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// String возвращает каноническое представление координаты.
func (c ArtifactCoordinate) String() string {
	if c.Classifier != "" {
		return fmt.Sprintf("%s:%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Version, c.Classifier, c.Type)
	}
	return fmt.Sprintf("%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Version, c.Type)
}

// Validate проверяет обязательные поля координаты.
// Классификатор и тип опциональны (тип по умолчанию подставляется Normalize).
func (c ArtifactCoordinate) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("groupId не задан")
	}
	if c.ArtifactID == "" {
		return fmt.Errorf("artifactId не задан")
	}
	if c.Version == "" {
		return fmt.Errorf("version не задана")
	}
	for _, part := range strings.Split(c.GroupID, ".") {
		if part == "" {
			return fmt.Errorf("некорректный groupId %q: пустой сегмент", c.GroupID)
		}
	}
	if strings.ContainsAny(c.GroupID+c.ArtifactID+c.Version+c.Classifier+c.Type, "/\\") {
		return fmt.Errorf("координата не должна содержать разделители пути")
	}
	return nil
}

// Normalize возвращает копию координаты с подставленным типом по умолчанию.
func (c ArtifactCoordinate) Normalize() ArtifactCoordinate {
	if c.Type == "" {
		c.Type = "jar"
	}
	return c
}
