package gidget

import "testing"

func TestParseArgsDefaults(t *testing.T) {
	opt, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs(nil) returned error: %v", err)
	}
	if opt.Config != defaultConfigFile || opt.LogFile != defaultLogFile || opt.PidFile != defaultPidFile {
		t.Errorf("unexpected defaults: %+v", opt)
	}
	if opt.Daemon || opt.Verbose || opt.Syslog {
		t.Errorf("expected every flag to default false, got %+v", opt)
	}
}

func TestParseArgsFlagsWithSeparateValue(t *testing.T) {
	opt, err := ParseArgs([]string{"-d", "-v", "-c", "/tmp/a.conf", "-l", "/tmp/a.log"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if !opt.Daemon || !opt.Verbose {
		t.Errorf("expected -d and -v to be set, got %+v", opt)
	}
	if opt.Config != "/tmp/a.conf" {
		t.Errorf("Config = %q, want /tmp/a.conf", opt.Config)
	}
	if opt.LogFile != "/tmp/a.log" {
		t.Errorf("LogFile = %q, want /tmp/a.log", opt.LogFile)
	}
}

func TestParseArgsAttachedValue(t *testing.T) {
	opt, err := ParseArgs([]string{"-c/tmp/b.conf"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if opt.Config != "/tmp/b.conf" {
		t.Errorf("Config = %q, want /tmp/b.conf", opt.Config)
	}
}

func TestParseArgsSyslogOptionalArgument(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want int
	}{
		{"bare flag defaults to 3", []string{"-s"}, defaultSyslogLevel},
		{"attached digit", []string{"-s5"}, 5},
		{"separate digit", []string{"-s", "6"}, 6},
		{"bare flag before config arg leaves config alone", []string{"-s", "/etc/other.conf"}, defaultSyslogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := ParseArgs(tt.argv)
			if err != nil {
				t.Fatalf("ParseArgs(%v) returned error: %v", tt.argv, err)
			}
			if !opt.Syslog {
				t.Errorf("ParseArgs(%v): Syslog = false, want true", tt.argv)
			}
			if opt.SyslogLvl != tt.want {
				t.Errorf("ParseArgs(%v): SyslogLvl = %d, want %d", tt.argv, opt.SyslogLvl, tt.want)
			}
		})
	}
}

func TestParseArgsPositionalConfig(t *testing.T) {
	opt, err := ParseArgs([]string{"/etc/alt-gidget.conf"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if opt.Config != "/etc/alt-gidget.conf" {
		t.Errorf("Config = %q, want /etc/alt-gidget.conf", opt.Config)
	}
}

func TestParseArgsRejectsOutOfRangeSyslogLevel(t *testing.T) {
	if _, err := ParseArgs([]string{"-s", "9"}); err == nil {
		t.Error("expected an error for a syslog level outside 0-7")
	}
}

func TestParseArgsTailCount(t *testing.T) {
	opt, err := ParseArgs([]string{"-t", "5"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if opt.TailCount != 5 {
		t.Errorf("TailCount = %d, want 5", opt.TailCount)
	}
}

func TestParseArgsTailCountAttached(t *testing.T) {
	opt, err := ParseArgs([]string{"-t10"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if opt.TailCount != 10 {
		t.Errorf("TailCount = %d, want 10", opt.TailCount)
	}
}

func TestParseArgsRejectsNonPositiveTailCount(t *testing.T) {
	for _, bad := range []string{"0", "-3", "nope"} {
		if _, err := ParseArgs([]string{"-t", bad}); err == nil {
			t.Errorf("ParseArgs([-t %s]) expected an error", bad)
		}
	}
}

func TestParseArgsTailCountDefaultsToZero(t *testing.T) {
	opt, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs(nil) returned error: %v", err)
	}
	if opt.TailCount != 0 {
		t.Errorf("TailCount = %d, want 0 (not requested)", opt.TailCount)
	}
}
