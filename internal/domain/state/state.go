// Пакет state — конечный автомат жизненного цикла одного запроса деплоя.
//
// Полный путь:
//
//	received → resolved → (blocked | validated) → written →
//	checksummed → metadata_updated → succeeded
//
// Любое не-терминальное состояние может перейти в failed;
// blocked переходит только в failed. Терминальные состояния:
// succeeded и failed.
package state

import (
	"fmt"
	"sync"
	"time"
)

// DeployState — состояние запроса деплоя.
type DeployState string

const (
	// StateReceived — запрос принят, ещё не обработан
	StateReceived DeployState = "received"
	// StateResolved — координата разрешена в пути хранения
	StateResolved DeployState = "resolved"
	// StateBlocked — деплой отклонён политикой блокировки повторных деплоев
	StateBlocked DeployState = "blocked"
	// StateValidated — политики репозитория пройдены, можно писать
	StateValidated DeployState = "validated"
	// StateWritten — основной артефакт и дескриптор записаны
	StateWritten DeployState = "written"
	// StateChecksummed — контрольные суммы сгенерированы
	StateChecksummed DeployState = "checksummed"
	// StateMetadataUpdated — дескриптор группы и metadata-репозиторий обновлены
	StateMetadataUpdated DeployState = "metadata_updated"
	// StateSucceeded — деплой завершён успешно (терминальное)
	StateSucceeded DeployState = "succeeded"
	// StateFailed — деплой завершён с ошибкой (терминальное)
	StateFailed DeployState = "failed"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[DeployState]map[DeployState]bool{
	StateReceived:        {StateResolved: true, StateFailed: true},
	StateResolved:        {StateBlocked: true, StateValidated: true, StateFailed: true},
	StateBlocked:         {StateFailed: true},
	StateValidated:       {StateWritten: true, StateFailed: true},
	StateWritten:         {StateChecksummed: true, StateFailed: true},
	StateChecksummed:     {StateMetadataUpdated: true, StateFailed: true},
	StateMetadataUpdated: {StateSucceeded: true, StateFailed: true},
	StateSucceeded:       {},
	StateFailed:          {},
}

// TransitionRecord — запись о переходе состояния запроса.
type TransitionRecord struct {
	From      DeployState `json:"from"`
	To        DeployState `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
}

// Tracker — трекер состояния одного запроса деплоя.
// Создаётся в состоянии received. Потокобезопасен.
type Tracker struct {
	mu      sync.RWMutex
	current DeployState
	history []TransitionRecord
}

// NewTracker создаёт трекер в состоянии received.
func NewTracker() *Tracker {
	return &Tracker{
		current: StateReceived,
		history: make([]TransitionRecord, 0, 8),
	}
}

// Current возвращает текущее состояние.
func (t *Tracker) Current() DeployState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// IsTerminal возвращает true для терминальных состояний.
func (t *Tracker) IsTerminal() bool {
	cur := t.Current()
	return cur == StateSucceeded || cur == StateFailed
}

// Advance выполняет переход в указанное состояние.
// Недопустимый переход — ошибка программирования вызывающего кода,
// возвращается как error для диагностики.
func (t *Tracker) Advance(to DeployState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	transitions, ok := validTransitions[t.current]
	if !ok || !transitions[to] {
		return fmt.Errorf("переход %s → %s недопустим", t.current, to)
	}

	t.history = append(t.history, TransitionRecord{
		From:      t.current,
		To:        to,
		Timestamp: time.Now().UTC(),
	})
	t.current = to
	return nil
}

// Fail переводит запрос в терминальное состояние failed
// из любого не-терминального состояния.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == StateSucceeded || t.current == StateFailed {
		return
	}

	t.history = append(t.history, TransitionRecord{
		From:      t.current,
		To:        StateFailed,
		Timestamp: time.Now().UTC(),
	})
	t.current = StateFailed
}

// History возвращает копию истории переходов.
func (t *Tracker) History() []TransitionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]TransitionRecord, len(t.history))
	copy(result, t.history)
	return result
}
