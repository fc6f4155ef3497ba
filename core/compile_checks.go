package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ RequestSigner  = (*HTTPSignatureSigner)(nil)
	_ Dispatcher     = (*DispatchCoordinator)(nil)
	_ Dispatcher     = (*Service)(nil)
	_ RetryScheduler = (*TimerRetryScheduler)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
