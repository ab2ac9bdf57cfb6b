// Пакет filestore — операции с физическими файлами артефактов на диске.
// Обеспечивает потоковую атомарную запись в раскладку репозитория:
// temp файл → запись → fsync → atomic rename. Существующий файл
// по целевому пути полностью перезаписывается.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store — файловое хранилище одного управляемого репозитория,
// корневая директория которого задаётся при создании.
type Store struct {
	root string
}

// New создаёт Store с корнем root. Проверяет и создаёт директорию,
// если она не существует.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать корень хранилища %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root возвращает корневую директорию хранилища.
func (s *Store) Root() string {
	return s.root
}

// FullPath возвращает абсолютный путь для относительного пути раскладки.
func (s *Store) FullPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Exists проверяет существование файла по относительному пути.
func (s *Store) Exists(rel string) bool {
	info, err := os.Stat(s.FullPath(rel))
	return err == nil && !info.IsDir()
}

// Write потоково записывает данные из reader по относительному пути.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется. Возвращает размер записанных данных.
func (s *Store) Write(rel string, reader io.Reader) (int64, error) {
	fullPath := s.FullPath(rel)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}
