package srv

type Srv struct {
	ai     *AI
	tower  *Tower
	seq    *SeqSrv
	notify NotifySrv
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{
		notify: &logNotifySrv{},
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (s *Srv) AI() *AI {
	return s.ai
}

func (s *Srv) Tower() *Tower {
	return s.tower
}

func (s *Srv) Seq() *SeqSrv {
	return s.seq
}

func (s *Srv) Notify() NotifySrv {
	return s.notify
}

func ApplyNotify(n NotifySrv) ApplyFunc {
	return func(s *Srv) {
		s.notify = n
	}
}
