package mailmerge

import (
	"testing"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	data := map[string]string{
		"name":    "An",
		"ho_ten":  "Nguyễn Văn An",
		"amount":  "1.500.000",
		"company": "",
	}

	cases := []struct {
		name string
		tpl  string
		want string
	}{
		{"single brace", "Hello {name}!", "Hello An!"},
		{"double brace with spaces", "Hello {{  name }}!", "Hello An!"},
		{"key canonicalized", "Kính gửi {Họ Tên}", "Kính gửi Nguyễn Văn An"},
		{"unknown key stays literal", "Code: {coupon}", "Code: {coupon}"},
		{"unknown double stays literal", "Code: {{ coupon }}", "Code: {{ coupon }}"},
		{"empty value substitutes", "[{company}]", "[]"},
		{"css block untouched", "<style>p {color: red}</style>", "<style>p {color: red}</style>"},
		{"repeated", "{amount} / {amount}", "1.500.000 / 1.500.000"},
		{"no placeholders", "plain", "plain"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Render(tc.tpl, data))
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	data := map[string]string{"name": "An"}
	tpl := "Hi {name}, {missing}"
	first := Render(tpl, data)
	assert.Equal(t, first, Render(tpl, data))
	assert.Equal(t, map[string]string{"name": "An"}, data)
}

func TestVariablesAndUnknown(t *testing.T) {
	vars := Variables("Hi {Name}", "<p>{{ amount }} {Name} {Ngày gửi}</p>")
	assert.Equal(t, []string{"name", "amount", "ngay_gui"}, vars)

	unknown := UnknownVariables([]string{"amount"}, "Hi {name}", "{email} {amount} {coupon}")
	assert.Equal(t, []string{"coupon"}, unknown)
}

func TestMergeData(t *testing.T) {
	custom := models.NewCustomData()
	custom.Set("email", "old@example.com")
	custom.Set("city", "Hanoi")
	name := "Bình"

	data := MergeData(custom, "new@example.com", &name)
	assert.Equal(t, "new@example.com", data["email"])
	assert.Equal(t, "Bình", data["name"])
	assert.Equal(t, "Hanoi", data["city"])

	data = MergeData(custom, "new@example.com", nil)
	_, hasName := data["name"]
	assert.False(t, hasName)
}
