package capability

import (
	"testing"

	"educore/internal/tester"
)

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"getCourses":       "get_courses",
		"getCourseDetails": "get_course_details",
		"get_courses":      "get_courses",
		"plain":            "plain",
		"X":                "x",
		"":                 "",
	}
	for in, want := range cases {
		tester.Eq(t, CamelToSnake(in), want, in)
	}
}

func TestSnakeToCamel(t *testing.T) {
	cases := map[string]string{
		"get_courses":        "getCourses",
		"get_course_details": "getCourseDetails",
		"getCourses":         "getCourses",
		"plain":              "plain",
		"a__b":               "aB",
		"":                   "",
	}
	for in, want := range cases {
		tester.Eq(t, SnakeToCamel(in), want, in)
	}
}

func TestResolveExact(t *testing.T) {
	r := NewRegistry()
	r.Register(Registration{Name: "getCourses", Handler: echoHandler(nil)})

	name, ok := r.Resolve("getCourses")
	tester.True(t, ok)
	tester.Eq(t, name, "getCourses")
}

func TestResolveCamelFindsSnake(t *testing.T) {
	r := NewRegistry()
	r.Register(Registration{Name: "get_courses", Handler: echoHandler(nil)})

	name, ok := r.Resolve("getCourses")
	tester.True(t, ok)
	tester.Eq(t, name, "get_courses")
}

func TestResolveSnakeFindsCamel(t *testing.T) {
	r := NewRegistry()
	r.Register(Registration{Name: "getCourses", Handler: echoHandler(nil)})

	name, ok := r.Resolve("get_courses")
	tester.True(t, ok)
	tester.Eq(t, name, "getCourses")
}

func TestResolveExactBeatsConversion(t *testing.T) {
	r := NewRegistry()
	r.Register(Registration{Name: "get_courses", Handler: echoHandler("snake")})
	r.Register(Registration{Name: "getCourses", Handler: echoHandler("camel")})

	name, ok := r.Resolve("get_courses")
	tester.True(t, ok)
	tester.Eq(t, name, "get_courses", "exact match must win over conversion")

	name, ok = r.Resolve("getCourses")
	tester.True(t, ok)
	tester.Eq(t, name, "getCourses")
}

func TestResolveMiss(t *testing.T) {
	r := NewRegistry()
	r.Register(Registration{Name: "getCourses", Handler: echoHandler(nil)})

	_, ok := r.Resolve("dropTables")
	tester.False(t, ok)

	_, ok = r.Resolve("")
	tester.False(t, ok)
}
