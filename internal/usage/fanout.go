package usage

import "errors"

// Fanout returns a logger writing every entry to each of loggers. Config
// reports the first logger's configuration.
func Fanout(loggers ...LoggerInterface) LoggerInterface {
	return fanout(loggers)
}

type fanout []LoggerInterface

func (f fanout) Write(e *Entry) {
	for _, l := range f {
		l.Write(e)
	}
}

func (f fanout) Config() Config {
	if len(f) == 0 {
		return Config{}
	}
	return f[0].Config()
}

func (f fanout) Close() error {
	var errs []error
	for _, l := range f {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
