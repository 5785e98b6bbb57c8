// Package field provides fluent builders for declaring the attributes of a
// strata model.
//
// Field names are column names (snake_case). The declared set is closed:
// records reject reads and writes of names that were not declared.
//
//	func (User) Fields() []strata.Field {
//	    return []strata.Field{
//	        field.String("name"),
//	        field.String("email"),
//	        field.String("password").Hidden(),
//	        field.Bool("active").Default(true),
//	        field.JSON("settings"),
//	    }
//	}
//
// # Kinds
//
// The kind of a field decides how values read from the driver are coerced
// before they reach a record, e.g. SQLite integers become booleans for
// field.Bool and textual timestamps become time.Time for field.Time.
//
// # Defaults
//
//	field.String("status").Default("active")
//	field.Time("published_at").DefaultFunc(func() any { return time.Now() })
//
// Defaults are applied when a record is made and the field is absent from the
// initial attributes.
//
// # Accessors
//
// A Getter computes the value returned by Record.Get and a Setter takes over
// Record.Set entirely. A setter may write several underlying attributes:
//
//	field.String("full_name").
//	    Setter(func(a field.Attributes, v any) error {
//	        first, last, _ := strings.Cut(v.(string), " ")
//	        if err := a.SetRaw("first_name", first); err != nil {
//	            return err
//	        }
//	        return a.SetRaw("last_name", last)
//	    })
package field
