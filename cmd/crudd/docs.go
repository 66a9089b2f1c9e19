package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           crudd API
// @version         1.0
// @description     Scaffolded CRUD endpoints for resources described in YAML.
//
// @contact.name   crudd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
