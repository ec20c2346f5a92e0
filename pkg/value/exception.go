package value

import "fmt"

// Exception carries a value thrown by language code. It travels through Go
// code as an ordinary error so host frames can propagate it unchanged.
type Exception struct {
	Value Value
}

// Throw wraps v as an *Exception.
func Throw(v Value) *Exception {
	return &Exception{Value: v}
}

func (e *Exception) Error() string {
	if o := e.Value.Object(); o != nil {
		// Error objects carry name/message data properties.
		name, _ := o.dataString("name")
		msg, _ := o.dataString("message")
		switch {
		case name != "" && msg != "":
			return name + ": " + msg
		case name != "":
			return name
		case msg != "":
			return msg
		}
	}
	return fmt.Sprintf("Uncaught %s", describe(e.Value))
}

// dataString looks up name along the prototype chain without running getters.
func (o *Object) dataString(name string) (string, bool) {
	key := StringKey(name)
	for p := o; p != nil; p = p.proto {
		if prop, ok := p.props[key]; ok {
			if prop.Accessor || !prop.Value.IsString() {
				return "", false
			}
			return prop.Value.AsString(), true
		}
	}
	return "", false
}
