package eligibility

import (
	"testing"

	"github.com/MrWong99/voxime/pkg/recognizer/mock"
	"github.com/MrWong99/voxime/pkg/types"
)

func TestResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
	}{
		{"off", ModeOff},
		{"main", ModeMain},
		{"secondary", ModeSecondary},
		{" Secondary ", ModeSecondary},
		{"", ModeMain},
		{"sideways", ModeMain},
	}
	for _, tt := range tests {
		if got := ResolveMode(tt.in); got != tt.want {
			t.Errorf("ResolveMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if ModeOff.Enabled() || !ModeSecondary.Enabled() {
		t.Error("Enabled mismatch")
	}
	if !ModeMain.OnPrimary() || ModeSecondary.OnPrimary() {
		t.Error("OnPrimary mismatch")
	}
}

func TestCanOfferVoice(t *testing.T) {
	t.Parallel()

	text := types.FieldAttributes{InputType: types.InputText}

	tests := []struct {
		name  string
		rec   *mock.Recognizer
		nilRc bool
		attrs types.FieldAttributes
		want  bool
	}{
		{name: "plain text field", rec: &mock.Recognizer{}, attrs: text, want: true},
		{name: "no recognizer", nilRc: true, attrs: text, want: false},
		{name: "denylisted", rec: &mock.Recognizer{Denylisted: true}, attrs: text, want: false},
		{name: "unavailable", rec: &mock.Recognizer{Unavailable: true}, attrs: text, want: false},
		{
			name:  "no microphone option",
			rec:   &mock.Recognizer{},
			attrs: types.FieldAttributes{InputType: types.InputText, PrivateOptions: "foo,nm"},
			want:  false,
		},
		{
			name:  "option that only contains nm",
			rec:   &mock.Recognizer{},
			attrs: types.FieldAttributes{InputType: types.InputText, PrivateOptions: "nmx"},
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Policy{}
			if !tt.nilRc {
				p.Recognizer = tt.rec
			}
			fc := types.FieldContext{Locale: "en-US", Attributes: tt.attrs}
			if got := p.CanOfferVoice(fc, tt.attrs); got != tt.want {
				t.Errorf("CanOfferVoice = %v, want %v", got, tt.want)
			}
		})
	}
}

// Password fields never get voice, whatever the other inputs say.
func TestCanOfferVoice_PasswordAlwaysFalse(t *testing.T) {
	t.Parallel()

	p := Policy{Recognizer: &mock.Recognizer{}}
	for _, it := range []types.InputType{types.InputPassword, types.InputVisiblePassword, types.InputWebPassword} {
		attrs := types.FieldAttributes{InputType: it}
		fc := types.FieldContext{Locale: "en-US", Attributes: attrs}
		if p.CanOfferVoice(fc, attrs) {
			t.Errorf("CanOfferVoice(%s) = true", it)
		}
	}
}

func TestLocaleSupported(t *testing.T) {
	t.Parallel()

	p := Policy{SupportedLocales: []string{"en", "de-DE", "pt_BR"}}
	tests := []struct {
		locale string
		want   bool
	}{
		{"en-US", true},
		{"en_GB", true},
		{"de-DE", true},
		{"de-AT", false},
		{"pt-BR", true},
		{"zh-CN", false},
		{"EN_us", true},
		{"not a tag", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.LocaleSupported(tt.locale); got != tt.want {
			t.Errorf("LocaleSupported(%q) = %v, want %v", tt.locale, got, tt.want)
		}
	}
}
