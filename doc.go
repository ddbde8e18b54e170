// Package ioc is an inversion-of-control container that turns a set of
// named bean definitions into a fully wired object graph.
//
// Definitions name either a constructor registered in a TypeRegistry or a
// plugin path. Constructor arguments and properties hold literals or
// BeanReferences to other beans. An ApplicationContext freezes the
// definitions on Refresh and drives every bean through its lifecycle:
//
//	Unbuilt -> Constructed -> PropertiesBound -> ThreadAssigned -> Completed
//
// with an absorbing Error state. References are resolved on demand, so
// definitions may refer to beans registered later. Beans that refer to each
// other only through pointer properties are wired with each other's partially
// built instance; cycles through constructor arguments fail.
//
// Basic usage:
//
//	types := ioc.NewTypeRegistry()
//	types.MustRegister("Store", NewStore, "dsn")
//	types.MustRegister("Service", NewService)
//
//	ctx, err := ioc.NewApplicationContext(types, slog.Default())
//	if err != nil {
//		return err
//	}
//	ctx.AddDefinition(&ioc.BeanDefinition{
//		Name:            "store",
//		TypeName:        "Store",
//		ConstructorArgs: []ioc.ConstructorArg{ioc.NamedArg("dsn", "file:app.db")},
//	})
//	ctx.AddDefinition(&ioc.BeanDefinition{
//		Name:       "service",
//		TypeName:   "Service",
//		Properties: map[string]any{"store": ioc.Ref("store")},
//	})
//	if err := ctx.Refresh(); err != nil {
//		return err
//	}
//	defer ctx.Close()
//
// Process-wide startup and shutdown routines are registered with
// RegisterStartup and RegisterShutdown and run by Init and Shutdown, which
// main calls once.
package ioc
