// artifact.go — метаданные файла артефакта в metadata-репозитории.
package model

import "time"

// FacetKindArtifactType — вид фасета, несущий тип упаковки артефакта.
// Артефакты без этого фасета учитываются в общих счётчиках статистики,
// но не попадают в разбивку по типам.
const FacetKindArtifactType = "artifact-type"

// ArtifactInfo — метаданные одного файла артефакта, как их видит
// metadata-репозиторий. Фасеты — непрозрачные payload'ы, привязанные
// к артефакту по виду фасета.
type ArtifactInfo struct {
	// Name — имя файла артефакта (с развёрнутой версией для snapshot)
	Name string `json:"name"`
	// Version — литеральная версия проекта (директория версии)
	Version string `json:"version"`
	// Size — размер файла в байтах
	Size int64 `json:"size"`
	// WhenGathered — время регистрации метаданных (UTC)
	WhenGathered time.Time `json:"when_gathered"`
	// Facets — вид фасета → payload
	Facets map[string]string `json:"facets,omitempty"`
}

// TypeFacet возвращает тип упаковки артефакта и признак его наличия.
func (a ArtifactInfo) TypeFacet() (string, bool) {
	t, ok := a.Facets[FacetKindArtifactType]
	return t, ok
}
