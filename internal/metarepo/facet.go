// facet.go — фасеты metadata-репозитория.
// Фасет — именованный типизированный payload, привязанный к репозиторию
// по виду фасета. Репозиторий хранит фасеты как непрозрачные байты;
// конкретный тип восстанавливается фабрикой, зарегистрированной на вид.
package metarepo

// MetadataFacet — типизированный payload, хранимый в metadata-репозитории.
type MetadataFacet interface {
	// FacetID возвращает вид фасета (идентификатор типа payload)
	FacetID() string
	// Name возвращает имя экземпляра фасета; оно же ключ сортировки и поиска
	Name() string
	// Marshal сериализует payload фасета
	Marshal() ([]byte, error)
	// Unmarshal восстанавливает payload из сериализованных байт
	Unmarshal(data []byte) error
}

// FacetFactory создаёт пустой экземпляр фасета данного вида
// для последующего Unmarshal.
type FacetFactory func() MetadataFacet
