// Пакет checksum — подсистема контрольных сумм артефактов.
// Вычисляет потоковые дайджесты файлов (без загрузки файла в память),
// пишет и проверяет sidecar-файлы вида <файл>.sha1 / <файл>.md5.
package checksum

import (
	"crypto/md5"  //nolint:gosec // MD5 обязателен для совместимости с Maven-раскладкой
	"crypto/sha1" //nolint:gosec // SHA-1 обязателен для совместимости с Maven-раскладкой
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Algorithm — алгоритм контрольной суммы. Закрытое перечисление:
// поддерживаются только SHA-1 и MD5, автоопределение не выполняется.
type Algorithm string

const (
	// SHA1 — алгоритм SHA-1, sidecar-расширение ".sha1"
	SHA1 Algorithm = "sha1"
	// MD5 — алгоритм MD5, sidecar-расширение ".md5"
	MD5 Algorithm = "md5"
)

// Algorithms возвращает все поддерживаемые алгоритмы.
// Порядок фиксирован и используется при генерации sidecar-файлов деплоя.
func Algorithms() []Algorithm {
	return []Algorithm{SHA1, MD5}
}

// Ext возвращает расширение sidecar-файла без точки.
func (a Algorithm) Ext() string {
	return string(a)
}

// newHash возвращает hash.Hash для алгоритма.
func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case MD5:
		return md5.New(), nil //nolint:gosec
	default:
		return nil, fmt.Errorf("неподдерживаемый алгоритм контрольной суммы: %q", a)
	}
}

// SidecarPath возвращает путь sidecar-файла для данного файла и алгоритма.
// Пример: "/repo/a-1.0.jar" + SHA1 → "/repo/a-1.0.jar.sha1"
func SidecarPath(path string, alg Algorithm) string {
	return path + "." + alg.Ext()
}

// Digest вычисляет контрольную сумму файла потоково и возвращает
// её в нижнем регистре в hex-представлении.
// Любая ошибка чтения исходного файла фатальна для операции:
// корректность контрольных сумм никогда не пропускается молча.
func Digest(path string, alg Algorithm) (string, error) {
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteSidecar вычисляет контрольную сумму файла и записывает её
// в sidecar-файл. Содержимое: "<hex>  <имя файла>\n" (формат,
// совместимый с sha1sum/md5sum). Возвращает путь sidecar-файла.
// Исходный файл не изменяется; существующий sidecar перезаписывается.
func WriteSidecar(path string, alg Algorithm) (string, error) {
	digest, err := Digest(path, alg)
	if err != nil {
		return "", err
	}

	sidecar := SidecarPath(path, alg)
	content := fmt.Sprintf("%s  %s\n", digest, filepath.Base(path))
	if err := os.WriteFile(sidecar, []byte(content), 0o640); err != nil {
		return "", fmt.Errorf("ошибка записи sidecar %s: %w", sidecar, err)
	}

	return sidecar, nil
}

// Verify пересчитывает контрольную сумму файла и сравнивает с записанной
// в sidecar. Отсутствующий sidecar — провал проверки, а не ошибка.
// Сверяется первый whitespace-токен sidecar-содержимого (имя файла
// после дайджеста допустимо и игнорируется).
func Verify(path string, alg Algorithm) (bool, error) {
	sidecar := SidecarPath(path, alg)
	data, err := os.ReadFile(sidecar)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка чтения sidecar %s: %w", sidecar, err)
	}

	stored := strings.Fields(strings.TrimSpace(string(data)))
	if len(stored) == 0 {
		return false, nil
	}

	actual, err := Digest(path, alg)
	if err != nil {
		return false, err
	}

	return stored[0] == actual, nil
}
