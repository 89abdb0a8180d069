package http

import (
	"github.com/labstack/echo/v4"
)

func v1Endpoint(
	feed *ProgressFeed,
	AuthHandler *AuthHandler,
	CatalogHandler *CatalogHandler,
	ProgressHandler *ProgressHandler,
	ProfileHandler *ProfileHandler,
	sessionMiddleware echo.MiddlewareFunc,
	requireSession echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware, sessionMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/auth",
				routes: []*route{
					{"POST", "/login", AuthHandler.HandleSignIn, nil},
					{"POST", "/register", AuthHandler.HandleSignUp, nil},
					{"PUT", "/sign-out", AuthHandler.HandleSignOut, nil},
					{"GET", "/me", AuthHandler.HandleMe, []echo.MiddlewareFunc{requireSession}},
				},
			},
			{
				prefix: "/courses",
				routes: []*route{
					{"GET", "", CatalogHandler.HandleListCourses, nil},
					{"GET", "/:id", CatalogHandler.HandleGetCourse, nil},
					{"GET", "/:courseID/lessons/:id", CatalogHandler.HandleGetLesson, nil},
					{"POST", "/:courseID/lessons/:lessonID/complete", ProgressHandler.HandleCompleteLesson, []echo.MiddlewareFunc{requireSession}},
					{"POST", "/:courseID/assignments/:assignmentID/complete", ProgressHandler.HandleCompleteAssignment, []echo.MiddlewareFunc{requireSession}},
				},
			},
			{
				prefix: "/assignments",
				routes: []*route{
					{"GET", "/:id", CatalogHandler.HandleGetAssignment, nil},
				},
			},
			{
				prefix: "/profile",
				routes: []*route{
					{"GET", "", ProfileHandler.HandleGetProfile, []echo.MiddlewareFunc{requireSession}},
				},
			},
			{
				prefix: "/ws",
				routes: []*route{
					{"GET", "/progress", feed.HandleSubscribe, []echo.MiddlewareFunc{requireSession}},
				},
			},
		},
	}
}
