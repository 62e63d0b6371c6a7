package infra

import "context"

// chanLock é um mutex baseado em channel de capacidade 1.
//
// Diferente de sync.Mutex, a espera pode ser abandonada via ctx, o que permite
// ao gateway limitar o tempo de uma oferta.
type chanLock struct {
	sem chan struct{}
}

func newChanLock() *chanLock {
	return &chanLock{sem: make(chan struct{}, 1)}
}

// Lock bloqueia até obter o lock ou até o ctx encerrar.
// Retorna false se o ctx encerrou primeiro; nesse caso o lock não foi obtido.
func (l *chanLock) Lock(ctx context.Context) bool {
	// Caminho rápido: ctx já encerrado não disputa o lock.
	if ctx.Err() != nil {
		return false
	}
	select {
	case l.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// LockNow bloqueia sem prazo. Usado pelo worker de entrega e por Cancel.
func (l *chanLock) LockNow() {
	l.sem <- struct{}{}
}

func (l *chanLock) Unlock() {
	<-l.sem
}
