package engine

import "context"

// eventBuffer вмещает все события одного запуска, поэтому конвейер
// не блокируется, даже если события никто не читает
const eventBuffer = 32

// Task - запуск конвейера в отдельной горутине с каналом событий
type Task struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	result *Result
	err    error
}

// Start запускает Run в горутине. Канал Events закрывается по завершении.
func (p *Pipeline) Start(ctx context.Context, params Params) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(t.done)
		defer close(t.events)
		defer cancel()
		t.result, t.err = p.Run(ctx, params, func(ev Event) {
			select {
			case t.events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return t
}

func (t *Task) Events() <-chan Event {
	return t.events
}

// Cancel просит остановиться на ближайшей границе этапов
func (t *Task) Cancel() {
	t.cancel()
}

// Wait ждёт завершения и возвращает то же, что Run
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}
