package finder

import "testing"

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []Value
		kwargs   map[string]Value
		want     string
		wantOK   bool
	}{
		{
			name:     "two strings",
			template: "SELECT %s FROM %s",
			args:     []Value{strValue("id"), strValue("users")},
			want:     "SELECT id FROM users",
			wantOK:   true,
		},
		{
			name:     "int and precision float",
			template: "%d items at %.2f",
			args:     []Value{intValue("5"), floatValue(9.999)},
			want:     "5 items at 10.00",
			wantOK:   true,
		},
		{
			name:     "named specifiers",
			template: "WHERE a = %(a)s AND b = %(b)d",
			kwargs:   map[string]Value{"a": strValue("x"), "b": intValue("7")},
			want:     "WHERE a = x AND b = 7",
			wantOK:   true,
		},
		{
			name:     "escaped percent",
			template: "LIKE '%%foo' AND x = %s",
			args:     []Value{strValue("1")},
			want:     "LIKE '%foo' AND x = 1",
			wantOK:   true,
		},
		{
			name:     "too few args",
			template: "%s %s",
			args:     []Value{strValue("only")},
			wantOK:   false,
		},
		{
			name:     "missing named key",
			template: "%(missing)s",
			kwargs:   map[string]Value{},
			wantOK:   false,
		},
		{
			name:     "placeholder arg",
			template: "WHERE id = %s",
			args:     []Value{placeholderValue()},
			want:     "WHERE id = {PLACEHOLDER}",
			wantOK:   true,
		},
		{
			name:     "hex and octal",
			template: "%x %o",
			args:     []Value{intValue("255"), intValue("8")},
			want:     "ff 10",
			wantOK:   true,
		},
		{
			name:     "general float",
			template: "%g",
			args:     []Value{floatValue(1200000)},
			want:     "1.2e+06",
			wantOK:   true,
		},
		{
			name:     "char from code",
			template: "%c",
			args:     []Value{intValue("65")},
			want:     "A",
			wantOK:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatPercent(tt.template, tt.args, tt.kwargs)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBrace(t *testing.T) {
	tests := []struct {
		name     string
		template string
		pos      []string
		kw       []kwarg
		unpack   bool
		want     string
	}{
		{
			name:     "numbered bare and keyword",
			template: "{0} {} {name}",
			pos:      []string{"a", "b"},
			kw:       []kwarg{{name: "name", value: "c"}},
			want:     "a b c",
		},
		{
			name:     "bare tokens in order",
			template: "SELECT {} FROM {}",
			pos:      []string{"id", "users"},
			want:     "SELECT id FROM users",
		},
		{
			name:     "repeated numbered",
			template: "{0} and {0}",
			pos:      []string{"x"},
			want:     "x and x",
		},
		{
			name:     "unpacked dict blanks everything",
			template: "SELECT {cols} FROM {table}",
			unpack:   true,
			want:     "SELECT {PLACEHOLDER} FROM {PLACEHOLDER}",
		},
		{
			name:     "out of range number",
			template: "{5}",
			pos:      []string{"a"},
			want:     "{PLACEHOLDER}",
		},
		{
			name:     "unknown keyword stays",
			template: "{other}",
			kw:       []kwarg{{name: "name", value: "c"}},
			want:     "{other}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatBrace(tt.template, tt.pos, tt.kw, tt.unpack); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPrecision(t *testing.T) {
	if prec, ok := extractPrecision("%.3f"); !ok || prec != 3 {
		t.Errorf("got %d ok=%v", prec, ok)
	}
	if _, ok := extractPrecision("%d"); ok {
		t.Error("no precision should report false")
	}
}
