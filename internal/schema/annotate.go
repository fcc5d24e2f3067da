package schema

// DescribeFunc returns the description for a property name, if any.
type DescribeFunc func(property string) (string, bool)

// Describe returns a copy of s in which every object property without a
// description receives the one describe reports for its name. Descriptions
// already present are kept. s itself is left untouched.
func Describe(s Schema, describe DescribeFunc) Schema {
	if s == nil || describe == nil {
		return s
	}

	switch v := s.(type) {
	case *ObjectSchema:
		properties := make(map[string]Schema, len(v.Properties))
		for key, prop := range v.Properties {
			prop = Describe(prop, describe)
			if prop.Meta().Description == "" {
				if desc, ok := describe(key); ok {
					md := *prop.Meta()
					md.Description = desc
					prop = WithMetadata(prop, md)
				}
			}
			properties[key] = prop
		}
		c := *v
		c.Properties = properties
		return &c
	case *ArraySchema:
		c := *v
		c.Items = Describe(v.Items, describe)
		return &c
	case *UnionSchema:
		c := *v
		c.AnyOf = make([]Schema, len(v.AnyOf))
		for i, alt := range v.AnyOf {
			c.AnyOf[i] = Describe(alt, describe)
		}
		return &c
	default:
		return s
	}
}
